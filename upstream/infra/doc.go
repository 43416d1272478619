// Package infra contém as implementações concretas de domain.Window e
// domain.Breaker:
//   - SlidingWindow: timestamps em memória (uma réplica)
//   - RedisWindow: sorted set no Redis (todas as réplicas dividem a janela)
//   - Breaker: sony/gobreaker/v2
package infra
