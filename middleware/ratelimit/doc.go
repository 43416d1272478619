// Package ratelimit traz os middlewares net/http do limite de entrada do
// gateway: token bucket por cliente e limite de requisições em andamento.
//
// Camadas:
//
//   - domain: contratos (limiter, pool de vagas, estatísticas)
//   - application: decisão allow/deny e aquisição de vaga, sem net/http
//   - infra: x/time/rate, semáforo em channel, contadores em memória/Redis
//   - ratelimit (este pacote): extração da chave do cliente e tradução para status/headers
//
// A chave resolvida (sujeito do JWT, header, X-Forwarded-For ou IP) fica no
// contexto da requisição; o gateway a usa para separar o cache por cliente.
package ratelimit
