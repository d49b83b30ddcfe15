package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"symptom-checker/internal/domain"
	"symptom-checker/internal/llm"
)

var (
	ErrEmptySymptoms = errors.New("empty symptoms provided")
	ErrMissingAPIKey = errors.New("server misconfiguration: api key not set")
)

// fallbackQuestions se devuelven cuando la salida del modelo no se puede interpretar.
var fallbackQuestions = []string{
	"Could you describe how long you've been experiencing these symptoms?",
	"Have you noticed any other symptoms alongside the ones mentioned?",
	"Are there any factors that seem to make your symptoms better or worse?",
	"Do you have any existing medical conditions or take any medications?",
}

const conversationIDLayout = "20060102_150405"

// ConsultationService orquesta una consulta: valida, arma el prompt, llama al
// modelo, interpreta la respuesta y registra el turno en el historial.
type ConsultationService struct {
	llmClient llm.Generator
	recorder  ConsultationRecorder
	prompts   ConsultationPromptBuilder
	logger    *zap.Logger
	now       func() time.Time
}

func NewConsultationService(llmClient llm.Generator, recorder ConsultationRecorder, logger *zap.Logger) *ConsultationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsultationService{
		llmClient: llmClient,
		recorder:  recorder,
		prompts:   ConsultationPromptBuilder{},
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze procesa un request completo. Solo devuelve error por validacion,
// configuracion o fallas del upstream; los errores de parseo terminan en
// las preguntas de fallback y los de persistencia solo se loguean.
func (s *ConsultationService) Analyze(ctx context.Context, req domain.ConsultationRequest) (domain.AnalysisResponse, error) {
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		return domain.AnalysisResponse{}, ErrEmptySymptoms
	}
	if s.llmClient == nil || !s.llmClient.Configured() {
		return domain.AnalysisResponse{}, ErrMissingAPIKey
	}

	prompt := s.prompts.Build(symptoms, req.ConversationHistory, req.IsFollowup)

	// Una desconexion del cliente no corta la llamada en curso.
	raw, err := s.llmClient.Generate(context.WithoutCancel(ctx), prompt)
	if err != nil {
		return domain.AnalysisResponse{}, fmt.Errorf("llm generate: %w", err)
	}

	payload, err := extractPayload(raw)
	if err != nil {
		s.logger.Warn("model output not parseable, using fallback questions", zap.Error(err))
		return s.fallbackResponse(), nil
	}

	switch p := payload.(type) {
	case domain.QuestionsPayload:
		return s.respondQuestions(symptoms, p), nil
	case domain.AssessmentPayload:
		return s.respondAssessment(symptoms, req, p), nil
	default:
		s.logger.Warn("unexpected payload type", zap.String("type", fmt.Sprintf("%T", payload)))
		return s.fallbackResponse(), nil
	}
}

func extractPayload(raw json.RawMessage) (domain.ModelPayload, error) {
	obj, err := ExtractJSON(ExtractText(raw))
	if err != nil {
		return nil, err
	}
	return DecodeModelPayload(obj)
}

func (s *ConsultationService) respondQuestions(symptoms string, p domain.QuestionsPayload) domain.AnalysisResponse {
	conversationID := p.ConversationID
	if strings.TrimSpace(conversationID) == "" {
		conversationID = s.conversationID("conv_")
	}

	s.record(domain.ConsultationRecord{
		Symptoms:         symptoms,
		ConsultationType: domain.ConsultationInitial,
		Questions:        p.Questions,
		Assessment:       map[string]any{},
		ConversationID:   conversationID,
		CreatedAt:        s.now().UTC(),
	})
	return domain.NewQuestionsResponse(p.Questions, conversationID)
}

// respondAssessment siempre genera un conversation_id nuevo, aunque el modelo mande uno.
func (s *ConsultationService) respondAssessment(symptoms string, req domain.ConsultationRequest, p domain.AssessmentPayload) domain.AnalysisResponse {
	conversationID := s.conversationID("conv_assessment_")

	s.record(domain.ConsultationRecord{
		Symptoms:         symptoms,
		ConsultationType: domain.ConsultationAssessment,
		Questions:        req.Questions(),
		Assessment:       p.Assessment,
		ConversationID:   conversationID,
		CreatedAt:        s.now().UTC(),
	})
	return domain.NewAssessmentResponse(p.Assessment, conversationID)
}

func (s *ConsultationService) fallbackResponse() domain.AnalysisResponse {
	questions := make([]string, len(fallbackQuestions))
	copy(questions, fallbackQuestions)
	return domain.NewQuestionsResponse(questions, s.conversationID("conv_fallback_"))
}

func (s *ConsultationService) record(record domain.ConsultationRecord) {
	if s.recorder == nil {
		s.logger.Warn("history recorder not configured", zap.String("conversation_id", record.ConversationID))
		return
	}
	s.recorder.Record(record)
}

func (s *ConsultationService) conversationID(prefix string) string {
	return prefix + s.now().UTC().Format(conversationIDLayout)
}
