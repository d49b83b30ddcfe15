package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS consultations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symptoms TEXT NOT NULL,
	consultation_type TEXT NOT NULL,
	questions TEXT,
	assessment TEXT,
	conversation_id TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symptoms TEXT NOT NULL,
	severity TEXT DEFAULT 'moderate',
	conditions TEXT,
	recommendations TEXT,
	disclaimer TEXT,
	created_at TEXT NOT NULL
);
`

// OpenSQLite abre (o crea) la base embebida y aplica el esquema.
// Una sola conexion abierta: las escrituras quedan serializadas.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return conn, nil
}
