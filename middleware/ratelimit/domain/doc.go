// Package domain define os contratos do limite de entrada do gateway: limiter
// por cliente, vagas de concorrência e estatísticas das decisões.
//
// Não depende de net/http nem de implementações concretas.
package domain
