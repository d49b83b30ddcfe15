package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symptom-checker/internal/domain"
	"symptom-checker/internal/llm"
	"symptom-checker/internal/service"
)

type consultationAnalyzer interface {
	Analyze(ctx context.Context, req domain.ConsultationRequest) (domain.AnalysisResponse, error)
}

type historyReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ConsultationRecord, error)
	ListLegacy(ctx context.Context, limit int) ([]domain.LegacyQuery, error)
	ClearAll(ctx context.Context) error
}

// ConsultationHandler mantiene dependencias para los endpoints de consulta e historial.
type ConsultationHandler struct {
	logger       *zap.Logger
	consultation consultationAnalyzer
	history      historyReader
}

func NewConsultationHandler(logger *zap.Logger, consultation consultationAnalyzer, history historyReader) *ConsultationHandler {
	return &ConsultationHandler{
		logger:       logger,
		consultation: consultation,
		history:      history,
	}
}

// AnalyzeSymptoms maneja POST /analyze_symptoms.
func (h *ConsultationHandler) AnalyzeSymptoms(c *gin.Context) {
	var req domain.ConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid analyze request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.consultation.Analyze(c.Request.Context(), req)
	if err != nil {
		status, msg := analyzeErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("analyze symptoms failed", zap.Error(err), zap.Int("status", status))
		} else {
			h.logger.Warn("analyze symptoms rejected", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// analyzeErrorStatus traduce errores del servicio a status HTTP.
func analyzeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptySymptoms):
		return http.StatusBadRequest, "Empty symptoms provided"
	case errors.Is(err, service.ErrMissingAPIKey):
		return http.StatusInternalServerError, "Server misconfiguration: API key not set"
	case errors.Is(err, llm.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "Gemini API timeout after multiple attempts. Please try again with simpler symptoms or check your connection."
	case errors.Is(err, llm.ErrUpstreamTransport):
		return http.StatusBadGateway, "Error contacting Gemini API"
	default:
		return http.StatusInternalServerError, "Unexpected server error"
	}
}

// GetHistory maneja GET /history?limit=N.
func (h *ConsultationHandler) GetHistory(c *gin.Context) {
	records, err := h.history.ListRecent(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetLegacyQueries maneja GET /history/queries?limit=N.
func (h *ConsultationHandler) GetLegacyQueries(c *gin.Context) {
	queries, err := h.history.ListLegacy(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.logger.Error("list legacy queries failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, queries)
}

// ClearHistory maneja DELETE /clear-history.
func (h *ConsultationHandler) ClearHistory(c *gin.Context) {
	if err := h.history.ClearAll(c.Request.Context()); err != nil {
		h.logger.Error("clear history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear history"})
		return
	}
	h.logger.Info("history cleared")
	c.JSON(http.StatusOK, gin.H{"message": "All consultation history cleared successfully"})
}

// queryLimit: un limit ausente o invalido usa el default del servicio.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultHistoryLimit)))
	if err != nil {
		return service.DefaultHistoryLimit
	}
	return limit
}
