package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"symptom-checker/internal/db"
	"symptom-checker/internal/domain"
	"symptom-checker/internal/llm"
	"symptom-checker/internal/repository"
	"symptom-checker/internal/service"
)

type testServer struct {
	router   *gin.Engine
	recorder *service.HistoryRecorder
	repo     repository.ConsultationRepository
	client   *llm.MockClient
}

func newTestServer(t *testing.T, client *llm.MockClient, limiter service.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	repo := repository.NewSQLiteConsultationRepository(conn)
	return newTestServerWithRepo(t, client, limiter, repo)
}

func newTestServerWithRepo(t *testing.T, client *llm.MockClient, limiter service.RateLimiter, repo repository.ConsultationRepository) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	recorder := service.NewHistoryRecorder(repo, 2, logger)
	t.Cleanup(recorder.Wait)

	handler := NewConsultationHandler(logger,
		service.NewConsultationService(client, recorder, logger),
		service.NewHistoryService(repo),
	)
	return &testServer{
		router:   NewRouter(logger, handler, limiter, nil),
		recorder: recorder,
		repo:     repo,
		client:   client,
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAnalyzeSymptoms_InitialQuestionsArePersisted(t *testing.T) {
	client := &llm.MockClient{Text: `{"response_type":"questions","questions":["Q1","Q2"],"conversation_id":"conv_123"}`}
	srv := newTestServer(t, client, nil)

	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "headache and fatigue"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[domain.AnalysisResponse](t, rec)
	if resp.ResponseType != domain.ResponseQuestions || resp.ConversationID != "conv_123" || len(resp.Questions) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Disclaimer != domain.Disclaimer {
		t.Fatalf("expected disclaimer, got %q", resp.Disclaimer)
	}

	srv.recorder.Wait()

	hist := srv.do(http.MethodGet, "/history", nil)
	if hist.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", hist.Code)
	}
	records := decodeBody[[]domain.ConsultationRecord](t, hist)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].ConsultationType != domain.ConsultationInitial || records[0].Symptoms != "headache and fatigue" {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestAnalyzeSymptoms_AssessmentTurnWritesLegacyRow(t *testing.T) {
	client := &llm.MockClient{Text: `{"response_type":"assessment","assessment":{"possible_conditions":[{"condition":"Migraine","likelihood":"medium","reasoning":"light sensitivity"}],"recommendations":["Rest in a dark room"],"urgency_level":"routine"}}`}
	srv := newTestServer(t, client, nil)

	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{
		Symptoms: "headache",
		ConversationHistory: []domain.QAPair{
			{Question: "How long?", Answer: "2 days"},
		},
		IsFollowup: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[domain.AnalysisResponse](t, rec)
	if resp.ResponseType != domain.ResponseAssessment || resp.Assessment["urgency_level"] != "routine" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Questions) != 0 {
		t.Fatalf("assessment must not carry questions, got %v", resp.Questions)
	}

	srv.recorder.Wait()

	queries := decodeBody[[]domain.LegacyQuery](t, srv.do(http.MethodGet, "/history/queries", nil))
	if len(queries) != 1 {
		t.Fatalf("expected one legacy row, got %d", len(queries))
	}
	if queries[0].Severity != "routine" || len(queries[0].Conditions) != 1 || queries[0].Conditions[0] != "Migraine" {
		t.Fatalf("unexpected legacy row %+v", queries[0])
	}
}

func TestAnalyzeSymptoms_UnparseableModelOutputReturnsFallback(t *testing.T) {
	client := &llm.MockClient{Text: "I can't help with that."}
	srv := newTestServer(t, client, nil)

	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "dizzy"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[domain.AnalysisResponse](t, rec)
	if resp.ResponseType != domain.ResponseQuestions || len(resp.Questions) != 4 {
		t.Fatalf("expected fallback questions, got %+v", resp)
	}

	srv.recorder.Wait()
	records := decodeBody[[]domain.ConsultationRecord](t, srv.do(http.MethodGet, "/history", nil))
	if len(records) != 0 {
		t.Fatalf("fallback turns must not be persisted, got %d", len(records))
	}
}

type failingRepo struct {
	repository.ConsultationRepository
}

func (failingRepo) Append(context.Context, domain.ConsultationRecord) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestAnalyzeSymptoms_PersistenceFailureStillReturns200(t *testing.T) {
	client := &llm.MockClient{Text: `{"questions":["Q1"]}`}
	srv := newTestServerWithRepo(t, client, nil, failingRepo{})

	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "back pain"})
	srv.recorder.Wait()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAnalyzeSymptoms_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		client *llm.MockClient
		body   any
		want   int
	}{
		{"empty symptoms", &llm.MockClient{}, domain.ConsultationRequest{Symptoms: "   "}, http.StatusBadRequest},
		{"malformed body", &llm.MockClient{}, "not an object", http.StatusBadRequest},
		{"missing api key", &llm.MockClient{MissingKey: true}, domain.ConsultationRequest{Symptoms: "cough"}, http.StatusInternalServerError},
		{"upstream timeout", &llm.MockClient{Err: llm.ErrUpstreamTimeout}, domain.ConsultationRequest{Symptoms: "cough"}, http.StatusGatewayTimeout},
		{"upstream transport", &llm.MockClient{Err: llm.ErrUpstreamTransport}, domain.ConsultationRequest{Symptoms: "cough"}, http.StatusBadGateway},
		{"unexpected", &llm.MockClient{Err: errors.New("boom")}, domain.ConsultationRequest{Symptoms: "cough"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.client, nil)
			rec := srv.do(http.MethodPost, "/analyze_symptoms", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
			body := decodeBody[map[string]string](t, rec)
			if body["error"] == "" {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestAnalyzeSymptoms_EmptySymptomsNeverReachModel(t *testing.T) {
	client := &llm.MockClient{}
	srv := newTestServer(t, client, nil)

	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(client.Prompts()) != 0 {
		t.Fatalf("expected no model calls")
	}
}

func TestClearHistory_EmptiesHistory(t *testing.T) {
	client := &llm.MockClient{Text: `{"questions":["Q1"]}`}
	srv := newTestServer(t, client, nil)

	srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "cough"})
	srv.recorder.Wait()

	rec := srv.do(http.MethodDelete, "/clear-history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	msg := decodeBody[map[string]string](t, rec)
	if msg["message"] != "All consultation history cleared successfully" {
		t.Fatalf("unexpected body %v", msg)
	}

	hist := srv.do(http.MethodGet, "/history", nil)
	if hist.Body.String() != "[]" {
		t.Fatalf("expected empty array, got %s", hist.Body.String())
	}
}

func TestGetHistory_LimitQuery(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, &llm.MockClient{}, nil)
	for i := 0; i < 5; i++ {
		if _, err := srv.repo.Append(ctx, domain.ConsultationRecord{
			Symptoms:         "cough",
			ConsultationType: domain.ConsultationInitial,
			CreatedAt:        time.Now().UTC(),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	cases := map[string]int{
		"/history?limit=2":    2,
		"/history?limit=abc":  5,
		"/history?limit=0":    5,
		"/history?limit=1000": 5,
		"/history":            5,
	}
	for path, want := range cases {
		records := decodeBody[[]domain.ConsultationRecord](t, srv.do(http.MethodGet, path, nil))
		if len(records) != want {
			t.Fatalf("%s: expected %d records, got %d", path, want, len(records))
		}
	}
}

func TestAnalyzeSymptoms_RateLimited(t *testing.T) {
	client := &llm.MockClient{Text: `{"questions":["Q1"]}`}
	srv := newTestServer(t, client, service.NewMemoryRateLimiter(time.Minute, 2))

	for i := 0; i < 2; i++ {
		if rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "cough"}); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := srv.do(http.MethodPost, "/analyze_symptoms", domain.ConsultationRequest{Symptoms: "cough"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected quota headers on 429, got %v", rec.Header())
	}
	if len(client.Prompts()) != 2 {
		t.Fatalf("rejected request must not reach the model, got %d calls", len(client.Prompts()))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]int{0: 1, 200 * time.Millisecond: 1, time.Second: 1, 1500 * time.Millisecond: 2, 59 * time.Second: 59}
	for in, want := range cases {
		if got := retryAfterSeconds(in); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &llm.MockClient{}, nil)

	rec := srv.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}
