// Package domain define erros e contratos das chamadas de saída.
package domain
