package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

// Config centraliza la configuración del servicio.
// GEN_API_KEY no es obligatoria al arrancar: su ausencia se reporta en cada request.
type Config struct {
	HTTPPort           string   `env:"HTTP_PORT" envDefault:"8000"`
	GenAPIKey          string   `env:"GEN_API_KEY"`
	GeminiBaseURL      string   `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel        string   `env:"GEMINI_MODEL" envDefault:"gemini-pro-latest"`
	HistoryDriver      string   `env:"HISTORY_DRIVER" envDefault:"sqlite"`
	SQLitePath         string   `env:"SQLITE_PATH" envDefault:"data.db"`
	DatabaseURL        string   `env:"DATABASE_URL"`
	HistoryWorkers     int      `env:"HISTORY_WORKERS" envDefault:"4"`
	RedisAddr          string   `env:"REDIS_ADDR"`
	RedisPassword      string   `env:"REDIS_PASSWORD"`
	RedisDB            int      `env:"REDIS_DB" envDefault:"0"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	CORSAllowOrigins   []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.HistoryDriver = strings.ToLower(strings.TrimSpace(cfg.HistoryDriver))
	cfg.GenAPIKey = strings.TrimSpace(cfg.GenAPIKey)
	return &cfg, nil
}

// HasAPIKey indica si hay credencial para el modelo.
func (c *Config) HasAPIKey() bool {
	return c != nil && c.GenAPIKey != ""
}
