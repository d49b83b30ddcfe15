package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"symptom-checker/internal/domain"
)

// Formatos aceptados al leer created_at. El segundo cubre filas escritas
// con isoformat() sin zona horaria.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

type SQLiteConsultationRepository struct {
	db *sql.DB
}

func NewSQLiteConsultationRepository(db *sql.DB) *SQLiteConsultationRepository {
	return &SQLiteConsultationRepository{db: db}
}

func (r *SQLiteConsultationRepository) Append(ctx context.Context, record domain.ConsultationRecord) (int64, error) {
	const query = `
		INSERT INTO consultations (symptoms, consultation_type, questions, assessment, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	questions, assessment, err := encodeRecordFields(record)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query,
		record.Symptoms,
		string(record.ConsultationType),
		questions,
		assessment,
		record.ConversationID,
		formatSQLiteTime(record.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteConsultationRepository) ListRecent(ctx context.Context, limit int) ([]domain.ConsultationRecord, error) {
	const query = `
		SELECT id, symptoms, consultation_type, questions, assessment, conversation_id, created_at
		FROM consultations
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ConsultationRecord{}
	for rows.Next() {
		var (
			rec                                           domain.ConsultationRecord
			consultationType, questions, assessment, conv sql.NullString
			createdAt                                     string
		)
		if err := rows.Scan(&rec.ID, &rec.Symptoms, &consultationType, &questions, &assessment, &conv, &createdAt); err != nil {
			return nil, err
		}
		fillDecodedFields(&rec, nullable(consultationType), nullable(questions), nullable(assessment), nullable(conv))
		rec.CreatedAt = parseSQLiteTime(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *SQLiteConsultationRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM consultations`); err != nil {
		return fmt.Errorf("clear consultations: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM queries`); err != nil {
		return fmt.Errorf("clear queries: %w", err)
	}
	return nil
}

func (r *SQLiteConsultationRepository) AppendLegacyQuery(ctx context.Context, q domain.LegacyQuery) (int64, error) {
	const query = `
		INSERT INTO queries (symptoms, severity, conditions, recommendations, disclaimer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	conditions, recommendations, err := encodeLegacyFields(q)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, q.Symptoms, q.Severity, conditions, recommendations, q.Disclaimer, formatSQLiteTime(q.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteConsultationRepository) ListLegacyQueries(ctx context.Context, limit int) ([]domain.LegacyQuery, error) {
	const query = `
		SELECT id, symptoms, severity, conditions, recommendations, disclaimer, created_at
		FROM queries
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.LegacyQuery{}
	for rows.Next() {
		var (
			q                                                 domain.LegacyQuery
			severity, conditions, recommendations, disclaimer sql.NullString
			createdAt                                         string
		)
		if err := rows.Scan(&q.ID, &q.Symptoms, &severity, &conditions, &recommendations, &disclaimer, &createdAt); err != nil {
			return nil, err
		}
		fillLegacyFields(&q, nullable(severity), nullable(conditions), nullable(recommendations), nullable(disclaimer))
		q.CreatedAt = parseSQLiteTime(createdAt)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func formatSQLiteTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
