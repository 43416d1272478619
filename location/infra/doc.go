// Package infra implementa as estratégias da cascata: leituras do aparelho,
// gpsd, geolocalização por IP, última posição conhecida e coordenada padrão.
package infra
