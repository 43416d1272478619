// Package cache agrupa o cache em camadas usado pelo gateway na frente da API
// da clínica.
//
// Visão geral (camadas):
//
//   - domain: Entry, Tier, Policy e contadores (sem redis, sem net/http)
//   - infra: MemoryTier (mapa em memória com relógio injetável) e RedisTier (espelho persistente)
//   - application: Manager (get/set/invalidate, TTL por prefixo, deduplicação de fetch em andamento)
//
// Fluxo de leitura:
//
//  1. memória (entrada fresca) -> hit
//  2. Redis, se a política do prefixo persiste -> promove para memória
//  3. fetch único por chave (singleflight); falhas podem servir a entrada vencida
//     enquanto ela estiver na janela de "stale"
package cache
