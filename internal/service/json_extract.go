package service

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const geminiTextPath = "candidates.0.content.parts.0.text"

// ErrNoJSONObject: el texto del modelo no contiene un objeto JSON parseable.
var ErrNoJSONObject = errors.New("no valid json object found in model output")

// greedy: desde la primera "{" hasta la ultima "}", cruzando saltos de linea.
var jsonObjectSpan = regexp.MustCompile(`(?s)\{.*\}`)

var (
	fenceStart = regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	fenceEnd   = regexp.MustCompile("(?is)\\s*```\\s*$")
)

// ExtractText devuelve el texto del primer candidato de Gemini.
// Si la ruta no existe devuelve el cuerpo completo como texto; nunca falla.
func ExtractText(raw json.RawMessage) string {
	res := gjson.GetBytes(raw, geminiTextPath)
	if res.Type == gjson.String {
		return res.Str
	}
	return string(raw)
}

// ExtractJSON intenta parsear el texto directo y, si falla, el primer span {...}.
// Un JSON valido que no es objeto (array, string, null) no se rescata por span.
func ExtractJSON(text string) (map[string]any, error) {
	text = cleanModelText(text)
	var direct any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		if obj, ok := direct.(map[string]any); ok {
			return obj, nil
		}
		return nil, ErrNoJSONObject
	}
	if span := jsonObjectSpan.FindString(text); span != "" {
		if obj, ok := parseObject(span); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// cleanModelText quita BOM y fences ```json ... ``` que Gemini suele agregar.
func cleanModelText(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF")
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
