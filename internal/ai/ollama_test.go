package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// fakeOllama records request bodies by path and replies with canned handlers.
type fakeOllama struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string][]map[string]any
}

func newFakeOllama(t *testing.T, handlers map[string]http.HandlerFunc) *fakeOllama {
	t.Helper()
	f := &fakeOllama{bodies: make(map[string][]map[string]any)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(data) > 0 && json.Unmarshal(data, &body) == nil {
			f.mu.Lock()
			f.bodies[r.URL.Path] = append(f.bodies[r.URL.Path], body)
			f.mu.Unlock()
		}
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOllama) requests(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.bodies[path]...)
}

func writeJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	t.Parallel()

	t.Run("returns response text and forwards images", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": writeJSON(map[string]any{"response": `{"action":"complete"}`, "done": true}),
		})
		c := NewOllamaClient(srv.URL)

		resp, err := c.Generate(context.Background(), NewGenerateRequest("look",
			WithModel("llava:13b"), WithImages("aGVsbG8=", "")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"action":"complete"}`, resp.Text)
		assert.False(t, resp.Streamed)

		bodies := srv.requests("/api/generate")
		require.Len(t, bodies, 1)
		assert.Equal(t, "llava:13b", bodies[0]["model"])
		assert.Equal(t, false, bodies[0]["stream"])
		assert.Equal(t, []any{"aGVsbG8="}, bodies[0]["images"])
		assert.Equal(t, "5m", bodies[0]["keep_alive"])
	})

	t.Run("falls back to thinking field", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": writeJSON(map[string]any{"response": "", "thinking": "from thinking"}),
		})
		resp, err := NewOllamaClient(srv.URL).Generate(context.Background(), NewGenerateRequest("p"))
		require.NoError(t, err)
		assert.Equal(t, "from thinking", resp.Text)
	})

	t.Run("empty response is an error", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": writeJSON(map[string]any{"response": "  "}),
		})
		_, err := NewOllamaClient(srv.URL).Generate(context.Background(), NewGenerateRequest("p"))
		require.ErrorIs(t, err, dperrors.ErrEmptyResponse)
	})

	t.Run("non-2xx status carries code and body", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		})
		_, err := NewOllamaClient(srv.URL).Generate(context.Background(), NewGenerateRequest("p"))
		require.ErrorIs(t, err, dperrors.ErrInferenceFailed)
		assert.Contains(t, err.Error(), "HTTP 500: boom")
	})

	t.Run("missing model maps to ErrModelNotFound", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"model 'x' not found"}`, http.StatusNotFound)
			},
		})
		_, err := NewOllamaClient(srv.URL).Generate(context.Background(), NewGenerateRequest("p", WithModel("x")))
		require.ErrorIs(t, err, dperrors.ErrModelNotFound)
	})

	t.Run("slow server times out", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				w.WriteHeader(http.StatusOK)
			},
		})
		_, err := NewOllamaClient(srv.URL).Generate(context.Background(),
			NewGenerateRequest("p", WithTimeout(50*time.Millisecond)))
		require.ErrorIs(t, err, dperrors.ErrInferenceTimeout)
	})
}

func TestOllamaClient_GenerateStream(t *testing.T) {
	t.Parallel()

	ndjson := strings.Join([]string{
		`{"response":"{\"act"}`,
		`not json at all`,
		``,
		`{"thinking":"ion\":"}`,
		`{"response":"\"complete\"}"}`,
		`{"response":"","done":true}`,
		`{"response":"after done"}`,
	}, "\n")

	t.Run("accumulates tokens until done", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, ndjson)
			},
		})
		var tokens []string
		resp, err := NewOllamaClient(srv.URL).GenerateStream(context.Background(),
			NewGenerateRequest("p", WithOptions(&Options{NumCtx: 2048, Temperature: 0.3})),
			func(tok string) error {
				tokens = append(tokens, tok)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, `{"action":"complete"}`, resp.Text)
		assert.True(t, resp.Streamed)
		assert.Equal(t, 3, resp.Tokens)
		assert.Len(t, tokens, 3)

		body := srv.requests("/api/generate")[0]
		assert.Equal(t, true, body["stream"])
		opts, ok := body["options"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 2048, opts["num_ctx"], 0)
	})

	t.Run("token callback error aborts", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, ndjson)
			},
		})
		stop := errors.New("stop")
		calls := 0
		_, err := NewOllamaClient(srv.URL).GenerateStream(context.Background(), NewGenerateRequest("p"),
			func(string) error {
				calls++
				return stop
			})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("non-streaming model falls back to buffered request", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": writeJSON(map[string]any{"response": "whole answer"}),
		})
		var got []string
		resp, err := NewOllamaClient(srv.URL).GenerateStream(context.Background(),
			NewGenerateRequest("p", WithModel("qwen3-vl:8b"), WithOptions(&Options{NumCtx: 1})),
			func(tok string) error {
				got = append(got, tok)
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, "whole answer", resp.Text)
		assert.False(t, resp.Streamed)
		assert.Equal(t, []string{"whole answer"}, got)

		body := srv.requests("/api/generate")[0]
		assert.Equal(t, false, body["stream"])
		assert.NotContains(t, body, "options")
	})

	t.Run("stream with no text is empty", func(t *testing.T) {
		t.Parallel()
		srv := newFakeOllama(t, map[string]http.HandlerFunc{
			"/api/generate": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"done":true}`+"\n")
			},
		})
		_, err := NewOllamaClient(srv.URL).GenerateStream(context.Background(), NewGenerateRequest("p"), nil)
		require.ErrorIs(t, err, dperrors.ErrEmptyResponse)
	})
}

func TestOllamaClient_Chat(t *testing.T) {
	t.Parallel()

	srv := newFakeOllama(t, map[string]http.HandlerFunc{
		"/api/chat": writeJSON(map[string]any{"message": map[string]any{"role": "assistant", "content": "hi there"}}),
	})
	resp, err := NewOllamaClient(srv.URL).Chat(context.Background(), &ChatRequest{
		Model: "llava:7b",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "be brief"},
			{Role: domain.RoleUser, Content: "hello [Screen included]", Images: []string{"abc"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)

	body := srv.requests("/api/chat")[0]
	assert.Equal(t, false, body["stream"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	last := msgs[1].(map[string]any)
	assert.Equal(t, []any{"abc"}, last["images"])
	assert.NotContains(t, msgs[0].(map[string]any), "images")
}

func TestOllamaClient_UnloadAndModels(t *testing.T) {
	t.Parallel()

	srv := newFakeOllama(t, map[string]http.HandlerFunc{
		"/api/generate": writeJSON(map[string]any{"done": true}),
		"/api/tags": writeJSON(map[string]any{"models": []map[string]any{
			{"name": "llava:7b"}, {"name": "qwen3-vl:8b"},
		}}),
	})
	c := NewOllamaClient(srv.URL + "/")
	assert.Equal(t, srv.URL, c.BaseURL())

	require.NoError(t, c.Unload(context.Background(), "llava:7b"))
	body := srv.requests("/api/generate")[0]
	assert.Equal(t, "llava:7b", body["model"])
	assert.InDelta(t, 0, body["keep_alive"], 0)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llava:7b", "qwen3-vl:8b"}, models)
	require.NoError(t, c.CheckConnection(context.Background()))
}

func TestOllamaClient_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewOllamaClient(url).CheckConnection(context.Background())
	require.ErrorIs(t, err, dperrors.ErrInferenceUnavailable)
	assert.Contains(t, err.Error(), url)
}

func TestSupportsStreaming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  bool
	}{
		{"llava:7b", true},
		{"qwen3-vl:8b", false},
		{"Qwen3-VL:30b", false},
		{"qwen2.5vl:7b", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SupportsStreaming(tt.model))
		})
	}
}
