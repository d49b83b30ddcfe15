package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
// Si Text no esta vacio se envuelve en el formato candidates/content/parts de Gemini.
type MockClient struct {
	Response   json.RawMessage
	Text       string
	Err        error
	MissingKey bool

	mu      sync.Mutex
	prompts []string
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Text != "" {
		return GeminiTextResponse(m.Text), nil
	}
	return m.Response, nil
}

func (m *MockClient) Configured() bool {
	return !m.MissingKey
}

// Prompts devuelve los prompts recibidos, en orden.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// GeminiTextResponse arma un cuerpo generateContent con un unico texto.
func GeminiTextResponse(text string) json.RawMessage {
	body := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
					"role":  "model",
				},
			},
		},
	}
	raw, _ := json.Marshal(body)
	return raw
}
