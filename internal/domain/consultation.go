package domain

import "time"

// Disclaimer acompaña a toda respuesta de /analyze_symptoms.
const Disclaimer = "This is for educational purposes only and not a substitute for professional medical advice."

type ConsultationType string

const (
	ConsultationInitial    ConsultationType = "initial"
	ConsultationAssessment ConsultationType = "assessment"
)

type ResponseType string

const (
	ResponseQuestions  ResponseType = "questions"
	ResponseAssessment ResponseType = "assessment"
)

// QAPair es una pregunta de seguimiento con la respuesta del usuario.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ConsultationRequest es el cuerpo de POST /analyze_symptoms.
type ConsultationRequest struct {
	Symptoms            string   `json:"symptoms"`
	ConversationHistory []QAPair `json:"conversation_history"`
	IsFollowup          bool     `json:"is_followup"`
}

// IsAssessmentTurn indica si el request debe producir una evaluacion.
// is_followup sin historial se trata como consulta inicial.
func (r ConsultationRequest) IsAssessmentTurn() bool {
	return r.IsFollowup && len(r.ConversationHistory) > 0
}

// Questions devuelve los textos de pregunta del historial, en orden.
func (r ConsultationRequest) Questions() []string {
	out := make([]string, 0, len(r.ConversationHistory))
	for _, qa := range r.ConversationHistory {
		out = append(out, qa.Question)
	}
	return out
}

// ConsultationRecord es un turno persistido en el historial.
type ConsultationRecord struct {
	ID               int64            `json:"id"`
	Symptoms         string           `json:"symptoms"`
	ConsultationType ConsultationType `json:"consultation_type"`
	Questions        []string         `json:"questions"`
	Assessment       map[string]any   `json:"assessment"`
	ConversationID   string           `json:"conversation_id"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AnalysisResponse es lo que recibe el cliente.
type AnalysisResponse struct {
	ResponseType   ResponseType   `json:"response_type"`
	Questions      []string       `json:"questions"`
	Assessment     map[string]any `json:"assessment"`
	ConversationID string         `json:"conversation_id"`
	Disclaimer     string         `json:"disclaimer"`
}

// NewQuestionsResponse arma una respuesta de tipo questions.
func NewQuestionsResponse(questions []string, conversationID string) AnalysisResponse {
	if questions == nil {
		questions = []string{}
	}
	return AnalysisResponse{
		ResponseType:   ResponseQuestions,
		Questions:      questions,
		Assessment:     map[string]any{},
		ConversationID: conversationID,
		Disclaimer:     Disclaimer,
	}
}

// NewAssessmentResponse arma una respuesta de tipo assessment.
func NewAssessmentResponse(assessment map[string]any, conversationID string) AnalysisResponse {
	if assessment == nil {
		assessment = map[string]any{}
	}
	return AnalysisResponse{
		ResponseType:   ResponseAssessment,
		Questions:      []string{},
		Assessment:     assessment,
		ConversationID: conversationID,
		Disclaimer:     Disclaimer,
	}
}
