// Package application contém o Manager do cache: regra de leitura em camadas,
// TTL por prefixo, invalidação e deduplicação de fetch.
//
// Depende de domain e de x/sync/singleflight; não conhece net/http.
package application
