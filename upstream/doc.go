// Package upstream protege as chamadas do gateway para a API da clínica.
//
// Visão geral (camadas):
//
//   - domain: erros (rate limited, circuito aberto, status HTTP), estados do breaker, contratos Window/Breaker
//   - infra: janela deslizante em memória ou Redis, breaker sobre sony/gobreaker
//   - application: Guard (janela + breaker), Client (cache + coalescência + HTTP) e helpers de fetch
//
// Ordem de uma leitura: cache -> singleflight -> janela -> breaker -> HTTP.
package upstream
