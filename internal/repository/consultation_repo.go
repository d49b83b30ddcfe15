package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"symptom-checker/internal/domain"
)

// ConsultationRepository es el historial de consultas. Solo agrega, lista y borra todo.
type ConsultationRepository interface {
	Append(ctx context.Context, record domain.ConsultationRecord) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ConsultationRecord, error)
	ClearAll(ctx context.Context) error
	AppendLegacyQuery(ctx context.Context, query domain.LegacyQuery) (int64, error)
	ListLegacyQueries(ctx context.Context, limit int) ([]domain.LegacyQuery, error)
}

const fallbackConsultationType = "consultation"

type PgConsultationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConsultationRepository(pool *pgxpool.Pool) *PgConsultationRepository {
	return &PgConsultationRepository{pool: pool}
}

func (r *PgConsultationRepository) Append(ctx context.Context, record domain.ConsultationRecord) (int64, error) {
	const query = `
		INSERT INTO consultations (symptoms, consultation_type, questions, assessment, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	questions, assessment, err := encodeRecordFields(record)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx, query,
		record.Symptoms,
		string(record.ConsultationType),
		questions,
		assessment,
		record.ConversationID,
		record.CreatedAt,
	).Scan(&id)
	return id, err
}

func (r *PgConsultationRepository) ListRecent(ctx context.Context, limit int) ([]domain.ConsultationRecord, error) {
	const query = `
		SELECT id, symptoms, consultation_type, questions, assessment, conversation_id, created_at
		FROM consultations
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ConsultationRecord{}
	for rows.Next() {
		var (
			rec                         domain.ConsultationRecord
			consultationType            *string
			questions, assessment, conv *string
		)
		if err := rows.Scan(&rec.ID, &rec.Symptoms, &consultationType, &questions, &assessment, &conv, &rec.CreatedAt); err != nil {
			return nil, err
		}
		fillDecodedFields(&rec, consultationType, questions, assessment, conv)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PgConsultationRepository) ClearAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM consultations`); err != nil {
		return fmt.Errorf("clear consultations: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM queries`); err != nil {
		return fmt.Errorf("clear queries: %w", err)
	}
	return nil
}

func (r *PgConsultationRepository) AppendLegacyQuery(ctx context.Context, q domain.LegacyQuery) (int64, error) {
	const query = `
		INSERT INTO queries (symptoms, severity, conditions, recommendations, disclaimer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	conditions, recommendations, err := encodeLegacyFields(q)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, query, q.Symptoms, q.Severity, conditions, recommendations, q.Disclaimer, q.CreatedAt).Scan(&id)
	return id, err
}

func (r *PgConsultationRepository) ListLegacyQueries(ctx context.Context, limit int) ([]domain.LegacyQuery, error) {
	const query = `
		SELECT id, symptoms, severity, conditions, recommendations, disclaimer, created_at
		FROM queries
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.LegacyQuery{}
	for rows.Next() {
		var (
			q                                                 domain.LegacyQuery
			severity, conditions, recommendations, disclaimer *string
		)
		if err := rows.Scan(&q.ID, &q.Symptoms, &severity, &conditions, &recommendations, &disclaimer, &q.CreatedAt); err != nil {
			return nil, err
		}
		fillLegacyFields(&q, severity, conditions, recommendations, disclaimer)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeRecordFields(record domain.ConsultationRecord) (string, string, error) {
	questions := record.Questions
	if questions == nil {
		questions = []string{}
	}
	assessment := record.Assessment
	if assessment == nil {
		assessment = map[string]any{}
	}
	q, err := json.Marshal(questions)
	if err != nil {
		return "", "", fmt.Errorf("encode questions: %w", err)
	}
	a, err := json.Marshal(assessment)
	if err != nil {
		return "", "", fmt.Errorf("encode assessment: %w", err)
	}
	return string(q), string(a), nil
}

func encodeLegacyFields(q domain.LegacyQuery) (string, string, error) {
	c, err := json.Marshal(nonNil(q.Conditions))
	if err != nil {
		return "", "", fmt.Errorf("encode conditions: %w", err)
	}
	r, err := json.Marshal(nonNil(q.Recommendations))
	if err != nil {
		return "", "", fmt.Errorf("encode recommendations: %w", err)
	}
	return string(c), string(r), nil
}

// fillDecodedFields aplica la degradacion por campo: JSON invalido queda vacio.
func fillDecodedFields(rec *domain.ConsultationRecord, consultationType, questions, assessment, conv *string) {
	rec.ConsultationType = fallbackConsultationType
	if consultationType != nil && *consultationType != "" {
		rec.ConsultationType = domain.ConsultationType(*consultationType)
	}
	rec.Questions = decodeQuestions(questions)
	rec.Assessment = decodeObject(assessment)
	if conv != nil {
		rec.ConversationID = *conv
	}
}

func fillLegacyFields(q *domain.LegacyQuery, severity, conditions, recommendations, disclaimer *string) {
	q.Severity = domain.DefaultSeverity
	if severity != nil && *severity != "" {
		q.Severity = *severity
	}
	q.Conditions = decodeStrings(conditions)
	q.Recommendations = decodeStrings(recommendations)
	if disclaimer != nil {
		q.Disclaimer = *disclaimer
	}
}

func decodeStrings(raw *string) []string {
	out := []string{}
	if raw == nil || *raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(*raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// decodeQuestions acepta tambien filas antiguas donde se guardaba el historial
// completo ({"question","answer"}) en lugar de solo las preguntas.
func decodeQuestions(raw *string) []string {
	out := []string{}
	if raw == nil || *raw == "" {
		return out
	}
	var items []any
	if err := json.Unmarshal([]byte(*raw), &items); err != nil {
		return out
	}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if q, ok := v["question"].(string); ok {
				out = append(out, q)
			}
		}
	}
	return out
}

func decodeObject(raw *string) map[string]any {
	out := map[string]any{}
	if raw == nil || *raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(*raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
