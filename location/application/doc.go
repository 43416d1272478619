// Package application contém o Resolver (cascata de estratégias) e a
// conferência de cerca das unidades.
package application
