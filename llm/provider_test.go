package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.openAICompatProvider"},
		{"openai", "*llm.openAICompatProvider"},
		{"gemini", "*llm.openAICompatProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", p))
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist"})
	require.Error(t, err)
	assert.Equal(t, "unknown llm provider: doesnotexist", err.Error())

	_, err = NewProvider(Config{})
	require.Error(t, err)
	assert.Equal(t, "llm provider not specified", err.Error())
}

// baseConfig reaches base.cfg on the concrete provider type.
func baseConfig(t *testing.T, p Provider) Config {
	t.Helper()
	v := reflect.ValueOf(p).Elem().FieldByName("base").FieldByName("cfg")
	return Config{
		Model:   v.FieldByName("Model").String(),
		BaseURL: v.FieldByName("BaseURL").String(),
		APIKey:  v.FieldByName("APIKey").String(),
		Timeout: time.Duration(v.FieldByName("Timeout").Int()),
	}
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"openai", "https://api.openai.com"},
		{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai"},
		{"custom", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "m"})
			require.NoError(t, err)
			cfg := baseConfig(t, p)
			assert.Equal(t, tt.wantURL, cfg.BaseURL)
			assert.Equal(t, defaultTimeout, cfg.Timeout)
		})
	}
}

func TestExplicitConfigPreserved(t *testing.T) {
	for _, provider := range []string{"ollama", "lmstudio", "openai", "gemini", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{
				Provider: provider,
				Model:    "llama3.2:3b",
				BaseURL:  "http://my-server:9999/",
				APIKey:   "sk-test",
				Timeout:  time.Minute,
			})
			require.NoError(t, err)
			cfg := baseConfig(t, p)
			assert.Equal(t, "http://my-server:9999", cfg.BaseURL)
			assert.Equal(t, "llama3.2:3b", cfg.Model)
			assert.Equal(t, "sk-test", cfg.APIKey)
			assert.Equal(t, time.Minute, cfg.Timeout)
		})
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"llama3.2:3b","message":{"role":"assistant","content":"## Summary\nok"},"done_reason":"stop","prompt_eval_count":12,"eval_count":5}`)
	}))
	defer srv.Close()

	p := NewOllama(Config{Model: "llama3.2:3b", BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "q"}},
	})
	require.NoError(t, err)

	assert.False(t, got.Stream)
	assert.Equal(t, "llama3.2:3b", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "## Summary\nok", resp.Content)
	assert.Equal(t, 17, resp.TotalTokens)
}

func TestOllamaEmptyContentIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model":"m","message":{"role":"assistant","content":"  "}}`)
	}))
	defer srv.Close()

	_, err := NewOllama(Config{Model: "m", BaseURL: srv.URL}).Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		fmt.Fprint(w, `{"embeddings":[[0.5,0.25],[1,0]]}`)
	}))
	defer srv.Close()

	vecs, err := NewOllama(Config{Model: "nomic-embed-text", BaseURL: srv.URL}).
		Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}, {1, 0}}, vecs)

	_, err = NewOllama(Config{Model: "m", BaseURL: srv.URL}).Embed(context.Background(), []string{"only one"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCompatChatAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/chat/completions":
			fmt.Fprint(w, `{"model":"m","choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
		case "/v1/embeddings":
			fmt.Fprint(w, `{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Model: "m", BaseURL: srv.URL, APIKey: "key"})
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, 4, resp.TotalTokens)

	vecs, err := p.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestGeminiHasNoVersionPrefix(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, `{"model":"m","choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "gemini", Model: "gemini-2.0-flash", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", path)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(Config{Model: "missing", BaseURL: srv.URL}).Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "model not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllama(Config{Model: "m", BaseURL: url}).Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCanceledContextIsNotWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOllama(Config{Model: "m", BaseURL: srv.URL}).Chat(ctx, ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
