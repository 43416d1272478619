// Package domain define os tipos e contratos do cache em camadas.
//
// Não depende de Redis nem de net/http; as implementações ficam em infra.
package domain
