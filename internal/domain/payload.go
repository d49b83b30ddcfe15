package domain

// ModelPayload es la respuesta ya interpretada del modelo.
// Solo QuestionsPayload y AssessmentPayload la implementan.
type ModelPayload interface {
	isModelPayload()
}

// QuestionsPayload: el modelo pide mas informacion.
type QuestionsPayload struct {
	Questions      []string
	ConversationID string
}

// AssessmentPayload: evaluacion final. El conversation_id del modelo no se conserva.
type AssessmentPayload struct {
	Assessment map[string]any
}

func (QuestionsPayload) isModelPayload()  {}
func (AssessmentPayload) isModelPayload() {}
