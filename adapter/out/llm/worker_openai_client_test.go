package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"order_worker/core/port/out"
	"order_worker/pkg/apperr"
	"order_worker/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"products\": []}"}, "finish_reason": "stop"}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker *resilience.CircuitBreakerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "test-model",
		HTTPTimeout: 5 * time.Second,
		Breaker:     breaker,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}, nil)

	content, err := c.Complete(context.Background(), "system", "user", out.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   4000,
		JSONMode:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"products": []}`, content)
	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 4000, got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])

	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["content"])
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, apperr.CodeUpstreamTransient, true},
		{"rate limited", http.StatusTooManyRequests, apperr.CodeUpstreamTransient, true},
		{"bad key", http.StatusUnauthorized, apperr.CodeExternalError, false},
		{"bad request", http.StatusBadRequest, apperr.CodeExternalError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "upstream said no", "type": "server_error"}}`))
			}, nil)

			_, err := c.Complete(context.Background(), "s", "u", out.CompletionOptions{})

			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, tt.status, apperr.GetHTTPStatus(err))
			assert.Equal(t, tt.retryable, resilience.IsRetryable(err))
		})
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	cfg := resilience.DefaultCircuitBreakerConfig("llm-test")
	cfg.ConsecutiveFailures = 1
	cfg.Timeout = time.Minute

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"message": "bad gateway"}}`))
	}, cfg)

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), "s", "u", out.CompletionOptions{})
		require.Error(t, err)
	}
	_, err := c.Complete(context.Background(), "s", "u", out.CompletionOptions{})

	assert.True(t, apperr.IsCode(err, apperr.CodeCircuitOpen))
	assert.False(t, resilience.IsRetryable(err))
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", c.BreakerState())
}

func TestClient_RateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1",
		RequestsPerSec: 0.001,
		Burst:          1,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u", out.CompletionOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, "s", "u", out.CompletionOptions{})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeUpstreamTransient))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zerolog.Nop())
	assert.True(t, apperr.IsCode(err, apperr.CodeConfigError))
}
