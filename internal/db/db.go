package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"symptom-checker/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS consultations (
	id BIGSERIAL PRIMARY KEY,
	symptoms TEXT NOT NULL,
	consultation_type TEXT NOT NULL,
	questions TEXT,
	assessment TEXT,
	conversation_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS queries (
	id BIGSERIAL PRIMARY KEY,
	symptoms TEXT NOT NULL,
	severity TEXT DEFAULT 'moderate',
	conditions TEXT,
	recommendations TEXT,
	disclaimer TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
`

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Carga baja: pocas conexiones alcanzan.
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// MigratePostgres crea las tablas de historial si no existen.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
