// Package gateway expõe o cache, as chamadas protegidas à API da clínica e a
// cascata de localização como handlers net/http.
package gateway
