// Package infra implementa os contratos de domain:
//
//   - Store: token bucket por cliente (golang.org/x/time/rate) com limpeza de ociosos
//   - ChanPool: semáforo para requisições em andamento
//   - MemoryStatsStore / RedisStatsStore: contadores das decisões
package infra
