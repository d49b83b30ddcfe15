package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel        = "gemini-pro-latest"
	defaultMaxAttempts  = 3
	defaultFirstTimeout = 15 * time.Second
	defaultRetryTimeout = 30 * time.Second
	defaultBackoffStep  = time.Second
)

// GeminiConfig agrupa los parametros del cliente.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxAttempts  int
	FirstTimeout time.Duration
	RetryTimeout time.Duration
	BackoffStep  time.Duration
}

// DefaultGeminiConfig: 3 intentos, 15s el primero y 30s los siguientes, espera lineal de 1s.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:       apiKey,
		BaseURL:      defaultBaseURL,
		Model:        defaultModel,
		MaxAttempts:  defaultMaxAttempts,
		FirstTimeout: defaultFirstTimeout,
		RetryTimeout: defaultRetryTimeout,
		BackoffStep:  defaultBackoffStep,
	}
}

// GeminiClient implementa Generator contra generateContent.
type GeminiClient struct {
	cfg    GeminiConfig
	client Doer
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGeminiClient construye el cliente. Los valores vacios toman los defaults.
func NewGeminiClient(cfg GeminiConfig, httpClient Doer, logger *zap.Logger) *GeminiClient {
	def := DefaultGeminiConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.FirstTimeout <= 0 {
		cfg.FirstTimeout = def.FirstTimeout
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = def.BackoffStep
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		cfg:    cfg,
		client: httpClient,
		logger: logger,
		sleep:  sleepContext,
	}
}

func (c *GeminiClient) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Generate llama a la API con reintentos. Solo se reintenta ante timeouts,
// o ante errores de transporte cuyo mensaje menciona un timeout.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	bodyBytes, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.logger.Info("gemini attempt", zap.Int("attempt", attempt), zap.Int("max_attempts", c.cfg.MaxAttempts))

		raw, err := c.doAttempt(ctx, bodyBytes, c.timeoutFor(attempt))
		if err == nil {
			c.logger.Info("gemini call successful", zap.Int("attempt", attempt))
			return raw, nil
		}

		last := attempt == c.cfg.MaxAttempts
		switch {
		case isTimeout(err):
			c.logger.Warn("gemini timeout", zap.Int("attempt", attempt), zap.Error(err))
			if last {
				return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
			}
		case mentionsTimeout(err) && !last:
			c.logger.Warn("gemini transport error mentioning timeout", zap.Int("attempt", attempt), zap.Error(err))
		default:
			c.logger.Warn("gemini request error", zap.Int("attempt", attempt), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTransport, err)
		}

		wait := time.Duration(attempt) * c.cfg.BackoffStep
		c.logger.Info("gemini retrying", zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTransport, err)
		}
	}

	// MaxAttempts >= 1 garantiza que el loop retorna antes.
	return nil, ErrUpstreamTransport
}

func (c *GeminiClient) timeoutFor(attempt int) time.Duration {
	if attempt == 1 {
		return c.cfg.FirstTimeout
	}
	return c.cfg.RetryTimeout
}

func (c *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, url.QueryEscape(c.cfg.APIKey))
}

func (c *GeminiClient) doAttempt(ctx context.Context, body []byte, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", redactKey(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("gemini error status", zap.Int("status", resp.StatusCode), zap.ByteString("body", truncate(respBody, 512)))
		return nil, &statusError{code: resp.StatusCode}
	}

	if !json.Valid(respBody) {
		return nil, errors.New("decode response: body is not valid json")
	}
	return json.RawMessage(respBody), nil
}

// statusError incluye el texto del status: "504 Gateway Timeout" se reintenta por su mensaje.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini http error: %d %s", e.code, http.StatusText(e.code))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func mentionsTimeout(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// redactKey evita que la API key termine en logs a traves de *url.Error.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil {
			q := u.Query()
			if q.Has("key") {
				q.Set("key", "REDACTED")
				u.RawQuery = q.Encode()
				urlErr.URL = u.String()
			}
		}
	}
	return err
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}
