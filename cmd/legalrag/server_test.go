package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	legalrag "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/pipeline"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// fakeEngine records the options of the last Ask.
type fakeEngine struct {
	lastQuery string
	lastOpts  int
	closed    bool
	panics    bool
}

func (f *fakeEngine) Ask(_ context.Context, q string, opts ...legalrag.AskOption) (*legalrag.Answer, error) {
	if f.panics {
		panic("boom")
	}
	if f.closed {
		return nil, legalrag.ErrClosed
	}
	if strings.TrimSpace(q) == "" {
		return nil, legalrag.ErrEmptyQuery
	}
	f.lastQuery, f.lastOpts = q, len(opts)
	return &legalrag.Answer{State: pipeline.State{
		RequestID: "req-1",
		UserQuery: q,
		Answer:    "## Summary\nEquality before the law.",
		Outcome:   pipeline.OutcomeAnswered,
	}}, nil
}

func (f *fakeEngine) Seed(context.Context, *legalrag.Fixture) (*legalrag.SeedReport, error) {
	return &legalrag.SeedReport{}, nil
}

func (f *fakeEngine) Status(context.Context) legalrag.Status {
	return legalrag.Status{
		Graph:  legalrag.GraphStatus{Backend: "neo4j", State: legalrag.StateUnavailable, Error: "connection refused"},
		Vector: legalrag.VectorStatus{Backend: "sqlite", State: legalrag.StateOK, Size: 42},
		Model:  legalrag.ModelStatus{Provider: "ollama", Name: "llama3:8b", BaseURL: "http://localhost:11434"},
	}
}

func (f *fakeEngine) Store() *store.Store { return nil }
func (f *fakeEngine) Close() error        { return nil }

func newTestServer(t *testing.T, e legalrag.Engine, opts serverOptions) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newServer(ctx, e, opts)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAskEndpoint(t *testing.T) {
	e := &fakeEngine{}
	h := newTestServer(t, e, serverOptions{})

	rec := do(t, h, http.MethodPost, "/ask", `{"query":"What is Article 14?","top_k":5,"rephrase":false}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "answered", body["outcome"])
	assert.Equal(t, "What is Article 14?", e.lastQuery)
	assert.Equal(t, 2, e.lastOpts)
}

func TestAskEndpointErrors(t *testing.T) {
	e := &fakeEngine{}
	h := newTestServer(t, e, serverOptions{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"query":`, http.StatusBadRequest},
		{"blank query", `{"query":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/ask", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	e.closed = true
	rec := do(t, h, http.MethodPost, "/ask", `{"query":"Article 21"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/ask", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTopKOutOfRangeIsIgnored(t *testing.T) {
	e := &fakeEngine{}
	h := newTestServer(t, e, serverOptions{})
	do(t, h, http.MethodPost, "/ask", `{"query":"Section 103","top_k":1000}`, nil)
	assert.Zero(t, e.lastOpts)
}

func TestStatusAndHealth(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, serverOptions{})

	rec := do(t, h, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st legalrag.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, legalrag.StateUnavailable, st.Graph.State)
	assert.Equal(t, 42, st.Vector.Size)
	assert.Equal(t, "llama3:8b", st.Model.Name)

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, serverOptions{})
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, serverOptions{APIKey: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/status", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(t, h, http.MethodGet, "/status", "", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		do(t, h, http.MethodGet, "/status", "", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", nil).Code, "health is open")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, serverOptions{RPS: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "", nil).Code)
	rec := do(t, h, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", nil).Code, "health is not limited")
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, serverOptions{CORSOrigins: "https://a.example, https://b.example"})

	rec := do(t, h, http.MethodOptions, "/ask", "", map[string]string{"Origin": "https://b.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://b.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	h := newTestServer(t, &fakeEngine{panics: true}, serverOptions{})
	rec := do(t, h, http.MethodPost, "/ask", `{"query":"Article 14"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, setupLogging("debug", true))
	require.NoError(t, setupLogging("WARN", false))
	assert.Error(t, setupLogging("loud", false))
	require.NoError(t, setupLogging("info", false))
}

func TestPrintAnswer(t *testing.T) {
	ans, err := (&fakeEngine{}).Ask(context.Background(), "Article 14")
	require.NoError(t, err)
	ans.GraphError = "neo4j_unavailable: refused"

	var buf bytes.Buffer
	printAnswer(&buf, ans)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "## Summary"))
	assert.Contains(t, out, "Degraded:")
	assert.Contains(t, out, "neo4j_unavailable")
}
