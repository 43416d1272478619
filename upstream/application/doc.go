// Package application contém os casos de uso das chamadas de saída:
// Guard (janela deslizante + circuit breaker) e Client (cache, coalescência e
// HTTP para a API da clínica), além dos helpers Fetch*.
package application
