package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type doerResult struct {
	status int
	body   string
	err    error
}

type fakeDoer struct {
	results   []doerResult
	calls     int
	deadlines []time.Duration
	lastURL   string
	lastBody  string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if deadline, ok := req.Context().Deadline(); ok {
		f.deadlines = append(f.deadlines, time.Until(deadline).Round(time.Second))
	}
	f.lastURL = req.URL.String()
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.lastBody = string(b)
	}
	res := f.results[f.calls]
	f.calls++
	if res.err != nil {
		return nil, res.err
	}
	return &http.Response{
		StatusCode: res.status,
		Body:       io.NopCloser(strings.NewReader(res.body)),
		Header:     make(http.Header),
	}, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(doer Doer, sleeper *sleepRecorder) *GeminiClient {
	c := NewGeminiClient(DefaultGeminiConfig("test-key"), doer, zap.NewNop())
	c.sleep = sleeper.sleep
	return c
}

func timeoutErr() error {
	return &url.Error{Op: "Post", URL: "https://example.test?key=test-key", Err: context.DeadlineExceeded}
}

func TestGeminiClientRetriesTimeoutsThenSucceeds(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{err: timeoutErr()},
		{err: timeoutErr()},
		{status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"third"}]}}]}`},
	}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	raw, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(string(raw), "third") {
		t.Fatalf("expected third attempt body, got %s", raw)
	}
	if doer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", doer.calls)
	}
	if len(sleeper.waits) != 2 || sleeper.waits[0] != time.Second || sleeper.waits[1] != 2*time.Second {
		t.Fatalf("expected waits [1s 2s], got %v", sleeper.waits)
	}
	if len(doer.deadlines) != 3 || doer.deadlines[0] != 15*time.Second || doer.deadlines[1] != 30*time.Second || doer.deadlines[2] != 30*time.Second {
		t.Fatalf("expected per-attempt timeouts [15s 30s 30s], got %v", doer.deadlines)
	}
}

func TestGeminiClientNonTimeoutErrorDoesNotRetry(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{err: &url.Error{Op: "Post", URL: "https://example.test", Err: errors.New("connection refused")}},
	}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if doer.calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", doer.calls)
	}
	if len(sleeper.waits) != 0 {
		t.Fatalf("expected no waits, got %v", sleeper.waits)
	}
}

func TestGeminiClientExhaustedTimeoutsReturnGatewayTimeout(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{err: timeoutErr()},
		{err: timeoutErr()},
		{err: timeoutErr()},
	}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if errors.Is(err, ErrUpstreamTransport) {
		t.Fatalf("timeout must not be reported as transport error")
	}
	if doer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", doer.calls)
	}
	if len(sleeper.waits) != 2 {
		t.Fatalf("expected 2 waits, got %v", sleeper.waits)
	}
}

func TestGeminiClientTimeoutMentionInStatusIsRetriedThenBadGateway(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{status: http.StatusGatewayTimeout, body: `{}`},
		{status: http.StatusGatewayTimeout, body: `{}`},
		{status: http.StatusGatewayTimeout, body: `{}`},
	}}
	sleeper := &sleepRecorder{}
	c := newTestClient(doer, sleeper)

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if doer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", doer.calls)
	}
}

func TestGeminiClientHTTPErrorStatusIsBadGateway(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`},
	}}
	c := newTestClient(doer, &sleepRecorder{})

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
	if doer.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", doer.calls)
	}
}

func TestGeminiClientInvalidJSONBodyIsBadGateway(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{status: http.StatusOK, body: `<html>oops</html>`},
	}}
	c := newTestClient(doer, &sleepRecorder{})

	_, err := c.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUpstreamTransport) {
		t.Fatalf("expected ErrUpstreamTransport, got %v", err)
	}
}

func TestGeminiClientRequestShape(t *testing.T) {
	doer := &fakeDoer{results: []doerResult{
		{status: http.StatusOK, body: `{"candidates":[]}`},
	}}
	c := newTestClient(doer, &sleepRecorder{})

	if _, err := c.Generate(context.Background(), "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(doer.lastURL, "/models/gemini-pro-latest:generateContent?key=test-key") {
		t.Fatalf("unexpected url %q", doer.lastURL)
	}
	if doer.lastBody != `{"contents":[{"parts":[{"text":"hello"}]}]}` {
		t.Fatalf("unexpected body %q", doer.lastBody)
	}
}

func TestGeminiClientConfigured(t *testing.T) {
	if NewGeminiClient(DefaultGeminiConfig("  "), nil, nil).Configured() {
		t.Fatalf("expected blank key to be unconfigured")
	}
	if !NewGeminiClient(DefaultGeminiConfig("k"), nil, nil).Configured() {
		t.Fatalf("expected key to be configured")
	}
}
