package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"symptom-checker/internal/domain"
)

// Client habla con la API HTTP del symptom checker.
type Client struct {
	http *resty.Client
}

// APIError es una respuesta no-2xx de la API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// New crea un cliente. El timeout cubre los reintentos del servidor contra Gemini.
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(90*time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Analyze envia un turno de consulta.
func (c *Client) Analyze(ctx context.Context, req domain.ConsultationRequest, requestID string) (domain.AnalysisResponse, error) {
	var out domain.AnalysisResponse
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req)
	if requestID != "" {
		r.SetHeader("X-Request-ID", requestID)
	}
	res, err := r.Post("/analyze_symptoms")
	if err != nil {
		return out, fmt.Errorf("analyze symptoms: %w", err)
	}
	if err := decode(res, &out); err != nil {
		return domain.AnalysisResponse{}, err
	}
	return out, nil
}

// History devuelve los ultimos turnos, el mas nuevo primero.
func (c *Client) History(ctx context.Context, limit int) ([]domain.ConsultationRecord, error) {
	var out []domain.ConsultationRecord
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get("/history")
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if err := decode(res, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearHistory borra todo el historial y devuelve el mensaje del servidor.
func (c *Client) ClearHistory(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	res, err := c.http.R().SetContext(ctx).Delete("/clear-history")
	if err != nil {
		return "", fmt.Errorf("clear history: %w", err)
	}
	if err := decode(res, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func decode(res *resty.Response, out any) error {
	if !res.IsSuccess() {
		var body struct {
			Error string `json:"error"`
		}
		msg := res.String()
		if err := json.Unmarshal(res.Body(), &body); err == nil && body.Error != "" {
			msg = body.Error
		}
		return &APIError{Status: res.StatusCode(), Message: msg}
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
