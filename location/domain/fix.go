package domain

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

type Method string

const (
	MethodHighAccuracy Method = "high_accuracy"
	MethodNetwork      Method = "network"
	MethodGPSD         Method = "gpsd"
	MethodIP           Method = "ip"
	MethodCache        Method = "cache"
	MethodDefault      Method = "default"
)

// Live indica métodos que medem a posição agora (o resultado pode virar
// a última posição conhecida).
func (m Method) Live() bool {
	switch m {
	case MethodHighAccuracy, MethodNetwork, MethodGPSD, MethodIP:
		return true
	}
	return false
}

var (
	// ErrUnavailable: a estratégia não tem como produzir posição para a consulta.
	ErrUnavailable = errors.New("location strategy unavailable")
	// ErrNoFix: nenhuma estratégia produziu posição aceitável.
	ErrNoFix = errors.New("no acceptable location fix")
)

type Fix struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AccuracyM float64   `json:"accuracy_m"`
	Method    Method    `json:"method"`
	At        time.Time `json:"at"`
}

// Reading é uma posição medida no aparelho e enviada pelo cliente.
type Reading struct {
	Method    Method    `json:"method" validate:"oneof=high_accuracy network"`
	Lat       float64   `json:"lat" validate:"latitude"`
	Lon       float64   `json:"lon" validate:"longitude"`
	AccuracyM float64   `json:"accuracy_m" validate:"gte=0"`
	At        time.Time `json:"at" validate:"required"`
}

var validate = validator.New()

func (r Reading) Validate() error {
	return validate.Struct(r)
}

func (r Reading) Fix() Fix {
	return Fix{Lat: r.Lat, Lon: r.Lon, AccuracyM: r.AccuracyM, Method: r.Method, At: r.At}
}

// Query é o que a cascata sabe sobre quem pede a posição.
type Query struct {
	Subject  string
	ClientIP string
	Readings []Reading
}

type Strategy interface {
	Method() Method
	Locate(ctx context.Context, q Query) (Fix, error)
}

// Site é uma unidade da clínica com raio de cerca.
type Site struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radius_m"`
}
