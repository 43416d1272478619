// Package application contém os casos de uso do limite de entrada: decisão
// allow/deny com Retry-After e aquisição de vaga com timeout.
//
// Depende só de domain e não conhece net/http.
package application
