package service

import (
	"context"
	"errors"

	"symptom-checker/internal/domain"
	"symptom-checker/internal/repository"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

var ErrHistoryServiceNotConfigured = errors.New("history service not configured")

// HistoryService expone lectura y borrado del historial.
type HistoryService struct {
	repo repository.ConsultationRepository
}

func NewHistoryService(repo repository.ConsultationRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// NormalizeLimit: no positivo usa el default, y nunca pasa del maximo.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (s *HistoryService) ListRecent(ctx context.Context, limit int) ([]domain.ConsultationRecord, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryServiceNotConfigured
	}
	return s.repo.ListRecent(ctx, NormalizeLimit(limit))
}

func (s *HistoryService) ListLegacy(ctx context.Context, limit int) ([]domain.LegacyQuery, error) {
	if s == nil || s.repo == nil {
		return nil, ErrHistoryServiceNotConfigured
	}
	return s.repo.ListLegacyQueries(ctx, NormalizeLimit(limit))
}

// ClearAll borra ambas tablas. Irreversible.
func (s *HistoryService) ClearAll(ctx context.Context) error {
	if s == nil || s.repo == nil {
		return ErrHistoryServiceNotConfigured
	}
	return s.repo.ClearAll(ctx)
}
