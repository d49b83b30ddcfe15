package service

import (
	"fmt"
	"strings"

	"symptom-checker/internal/domain"
)

const questionsExample = `{"response_type": "questions", "questions": ["How long have you been experiencing these symptoms?", "Have you had any fever or chills?", "Are there any activities or situations that make the symptoms better or worse?", "Do you have any chronic medical conditions or take any medications?", "Have you traveled recently or been exposed to anyone who was sick?"], "conversation_id": "conv_123"}`

const assessmentExample = `{"response_type": "assessment", "assessment": {"possible_conditions": [{"condition": "Common Cold", "likelihood": "moderate", "reasoning": "Based on symptoms and timing"}, {"condition": "Seasonal Viral Infection", "likelihood": "high", "reasoning": "Consistent with presentation"}], "recommendations": ["Monitor symptoms for 7-10 days", "Stay hydrated and get adequate rest", "Seek medical care if symptoms worsen or persist beyond 10 days"], "red_flags": ["Difficulty breathing or shortness of breath", "High fever (>101.5°F) persisting more than 3 days", "Severe headache with neck stiffness"], "urgency_level": "routine", "when_to_seek_care": "If symptoms worsen or new concerning symptoms develop"}}`

// ConsultationPromptBuilder arma el prompt segun la etapa de la consulta.
type ConsultationPromptBuilder struct{}

// Build decide la variante: sin follow-up o sin historial siempre es consulta inicial.
func (ConsultationPromptBuilder) Build(symptoms string, history []domain.QAPair, isFollowup bool) string {
	if !isFollowup || len(history) == 0 {
		return buildInitialPrompt(symptoms)
	}
	return buildAssessmentPrompt(symptoms, history)
}

func buildInitialPrompt(symptoms string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Medical consultation for: %s\n\n", symptoms)
	b.WriteString("Ask 4-5 relevant follow-up questions a doctor would ask. Focus on: duration, associated symptoms, triggers, medical history, recent exposures (but NOT COVID-related questions).\n\n")
	b.WriteString("Return JSON only:\n")
	b.WriteString(questionsExample)
	b.WriteString("\n\nBe specific to the symptoms. Do NOT diagnose yet. Avoid COVID-19 related questions.")
	return b.String()
}

func buildAssessmentPrompt(symptoms string, history []domain.QAPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Medical assessment for: %s\n\n", symptoms)
	b.WriteString("Conversation:\n")
	b.WriteString(formatTranscript(history))
	b.WriteString("\n\nProvide educational assessment with:\n")
	b.WriteString("1. 2-3 possible conditions (likelihood: low/moderate/high)\n")
	b.WriteString("2. General recommendations\n")
	b.WriteString("3. Red flag symptoms needing immediate care\n")
	b.WriteString("4. When to seek medical attention\n\n")
	b.WriteString("IMPORTANT: Do NOT suggest COVID-19 as a possible condition, regardless of symptoms. Focus on other common viral infections, bacterial infections, or non-infectious causes.\n\n")
	b.WriteString("JSON only:\n")
	b.WriteString(assessmentExample)
	b.WriteString("\n\nBe concise but medically accurate.")
	return b.String()
}

// formatTranscript: "Q: ...\nA: ..." por par, en el orden recibido.
func formatTranscript(history []domain.QAPair) string {
	lines := make([]string, 0, len(history))
	for _, qa := range history {
		lines = append(lines, "Q: "+qa.Question+"\nA: "+qa.Answer)
	}
	return strings.Join(lines, "\n")
}
