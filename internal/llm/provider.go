package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Generator define la interfaz para pedir contenido al modelo.
// Generate devuelve el cuerpo JSON crudo de la API, sin interpretar.
type Generator interface {
	Generate(ctx context.Context, prompt string) (json.RawMessage, error)
	Configured() bool
}

// Doer es el subconjunto de *http.Client que usa el cliente.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	// ErrUpstreamTimeout se devuelve tras agotar los reintentos por timeout (504).
	ErrUpstreamTimeout = errors.New("gemini api timeout after multiple attempts")
	// ErrUpstreamTransport cubre cualquier otra falla al hablar con la API (502).
	ErrUpstreamTransport = errors.New("error contacting gemini api")
)
