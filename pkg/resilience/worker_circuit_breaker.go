// Package resilience provides fault tolerance patterns for external service calls.
package resilience

import (
	"errors"
	"time"

	"order_worker/pkg/apperr"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name                string        // Name for logging/metrics
	MaxHalfOpenRequests uint32        // Requests allowed through while half-open (default: 3)
	Interval            time.Duration // Closed-state counter reset period (default: 60s)
	Timeout             time.Duration // Time to wait before half-open (default: 30s)
	ConsecutiveFailures uint32        // Trip after this many failures in a row (default: 5)
	MinRequests         uint32        // Minimum sample before the ratio rule applies (default: 10)
	FailureRatio        float64       // Trip when failures/requests reaches this (default: 0.6)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                name,
		MaxHalfOpenRequests: 3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// CircuitBreaker wraps gobreaker and converts its sentinel errors into
// apperr values the retry policy understands.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig, log zerolog.Logger) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig("default")
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		// 클라이언트 측 입력 오류는 장애로 집계하지 않음
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status, ok := statusOf(err)
			return ok && status >= 400 && status < 500 && status != 408 && status != 429
		},
	}
	return &CircuitBreaker{name: cfg.Name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

// State returns the current state as a string.
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// Execute runs fn through the breaker.
func (c *CircuitBreaker) Execute(fn func() (string, error)) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperr.CircuitOpen(c.name, err)
		}
		return "", err
	}
	s, _ := out.(string)
	return s, nil
}
