// Package infra contém as camadas concretas do cache:
//   - MemoryTier: mapa em memória com limite de entradas e janela de "stale"
//   - RedisTier: espelho persistente (papel do localStorage no cliente web)
package infra
