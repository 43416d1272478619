// Package domain define Fix, Reading, Strategy e os erros da cascata.
package domain
