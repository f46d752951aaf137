package resilience

import (
	"errors"
	"testing"
	"time"

	"order_worker/pkg/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("llm-test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute
	cb := NewCircuitBreaker(cfg, zerolog.Nop())

	boom := errors.New("upstream exploded")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", cb.State())

	called := false
	_, err := cb.Execute(func() (string, error) {
		called = true
		return "ok", nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, apperr.IsCode(err, apperr.CodeCircuitOpen))
	assert.False(t, IsRetryable(err))
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("llm-test")
	cfg.ConsecutiveFailures = 1
	cb := NewCircuitBreaker(cfg, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (string, error) { return "", statusErr{400} })
		require.Error(t, err)
	}
	assert.Equal(t, "closed", cb.State())

	out, err := cb.Execute(func() (string, error) { return "fine", nil })
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
	assert.Equal(t, "llm-test", cb.Name())
}
