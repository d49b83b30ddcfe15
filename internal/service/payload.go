package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"symptom-checker/internal/domain"
)

var ErrInvalidPayload = errors.New("invalid model payload")

// DecodeModelPayload convierte el objeto extraido en la variante correspondiente.
// Sin response_type se asume "questions"; cualquier otro valor presente,
// aunque no sea string, va por la rama de evaluacion.
func DecodeModelPayload(obj map[string]any) (domain.ModelPayload, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: empty object", ErrInvalidPayload)
	}

	responseType, present := obj["response_type"]
	if !present || responseType == string(domain.ResponseQuestions) {
		return decodeQuestions(obj)
	}
	return decodeAssessment(obj)
}

func decodeQuestions(obj map[string]any) (domain.QuestionsPayload, error) {
	var payload domain.QuestionsPayload

	if raw, ok := obj["questions"]; ok && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return payload, fmt.Errorf("%w: questions is %T, want array", ErrInvalidPayload, raw)
		}
		payload.Questions = make([]string, 0, len(items))
		for i, item := range items {
			q, ok := item.(string)
			if !ok {
				return payload, fmt.Errorf("%w: questions[%d] is %T, want string", ErrInvalidPayload, i, item)
			}
			payload.Questions = append(payload.Questions, q)
		}
	} else {
		payload.Questions = []string{}
	}

	if id, ok := obj["conversation_id"].(string); ok {
		payload.ConversationID = id
	}
	return payload, nil
}

func decodeAssessment(obj map[string]any) (domain.AssessmentPayload, error) {
	var payload domain.AssessmentPayload

	raw, ok := obj["assessment"]
	if !ok || raw == nil {
		payload.Assessment = map[string]any{}
		return payload, nil
	}
	assessment, ok := raw.(map[string]any)
	if !ok {
		return payload, fmt.Errorf("%w: assessment is %T, want object", ErrInvalidPayload, raw)
	}
	payload.Assessment = assessment
	return payload, nil
}

// legacyQueryFields resume una evaluacion al formato de la tabla queries.
func legacyQueryFields(assessment map[string]any) (severity string, conditions, recommendations []string) {
	severity = domain.DefaultSeverity
	if v, ok := assessment["urgency_level"].(string); ok && v != "" {
		severity = v
	}

	conditions = []string{}
	if items, ok := assessment["possible_conditions"].([]any); ok {
		for _, item := range items {
			switch c := item.(type) {
			case string:
				conditions = append(conditions, c)
			case map[string]any:
				if name, ok := c["condition"].(string); ok {
					conditions = append(conditions, name)
				}
			}
		}
	}

	recommendations = []string{}
	if items, ok := assessment["recommendations"].([]any); ok {
		for _, item := range items {
			if r, ok := item.(string); ok {
				recommendations = append(recommendations, r)
				continue
			}
			if b, err := json.Marshal(item); err == nil {
				recommendations = append(recommendations, string(b))
			}
		}
	}
	return severity, conditions, recommendations
}
