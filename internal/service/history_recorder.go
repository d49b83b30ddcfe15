package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"symptom-checker/internal/domain"
	"symptom-checker/internal/repository"
)

const (
	defaultHistoryWorkers = 4
	historyWriteTimeout   = 5 * time.Second
)

// ConsultationRecorder recibe turnos para persistir sin bloquear la respuesta.
type ConsultationRecorder interface {
	Record(record domain.ConsultationRecord)
}

// HistoryRecorder persiste en segundo plano con un pool acotado de workers.
// Los errores de escritura solo se loguean.
type HistoryRecorder struct {
	repo    repository.ConsultationRepository
	logger  *zap.Logger
	group   errgroup.Group
	dropped atomic.Int64
}

func NewHistoryRecorder(repo repository.ConsultationRepository, workers int, logger *zap.Logger) *HistoryRecorder {
	if workers <= 0 {
		workers = defaultHistoryWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &HistoryRecorder{repo: repo, logger: logger}
	r.group.SetLimit(workers)
	return r
}

// Record lanza la escritura sin bloquear. Con todos los workers ocupados el
// turno se descarta y se loguea; la respuesta al cliente no espera al store.
func (r *HistoryRecorder) Record(record domain.ConsultationRecord) {
	started := r.group.TryGo(func() error {
		r.persist(record)
		return nil
	})
	if !started {
		r.dropped.Add(1)
		r.logger.Warn("history write dropped, all workers busy",
			zap.String("consultation_type", string(record.ConsultationType)),
			zap.String("conversation_id", record.ConversationID),
		)
	}
}

// Dropped cuenta los turnos descartados por saturacion.
func (r *HistoryRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Wait bloquea hasta que terminan las escrituras pendientes.
func (r *HistoryRecorder) Wait() {
	_ = r.group.Wait()
}

func (r *HistoryRecorder) persist(record domain.ConsultationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	id, err := r.repo.Append(ctx, record)
	if err != nil {
		r.logger.Warn("save consultation failed",
			zap.Error(err),
			zap.String("consultation_type", string(record.ConsultationType)),
			zap.String("conversation_id", record.ConversationID),
		)
		return
	}
	r.logger.Info("consultation saved",
		zap.Int64("id", id),
		zap.String("consultation_type", string(record.ConsultationType)),
		zap.String("conversation_id", record.ConversationID),
	)

	if record.ConsultationType != domain.ConsultationAssessment {
		return
	}
	severity, conditions, recommendations := legacyQueryFields(record.Assessment)
	if _, err := r.repo.AppendLegacyQuery(ctx, domain.LegacyQuery{
		Symptoms:        record.Symptoms,
		Severity:        severity,
		Conditions:      conditions,
		Recommendations: recommendations,
		Disclaimer:      domain.Disclaimer,
		CreatedAt:       record.CreatedAt,
	}); err != nil {
		r.logger.Warn("save legacy query failed", zap.Error(err), zap.String("conversation_id", record.ConversationID))
	}
}
