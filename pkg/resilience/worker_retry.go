package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"order_worker/pkg/apperr"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second

	// jitterRatio bounds the random spread applied to each delay.
	jitterRatio = 0.1
)

// RetryContext describes one retried operation. A fresh value is created per
// WithRetry call and dropped when it returns.
type RetryContext struct {
	Attempt    int
	MaxRetries int
	BaseDelay  time.Duration
}

// RetryOptions configures WithRetry. MaxRetries of zero means a single
// attempt. BaseDelay and ShouldRetry fall back to defaults when unset.
type RetryOptions struct {
	MaxRetries  int
	BaseDelay   time.Duration
	ShouldRetry func(err error) bool
	OnRetry     func(err error, attempt int, delay time.Duration)
}

// DefaultRetryOptions returns 3 retries starting at 1s.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:  DefaultMaxRetries,
		BaseDelay:   DefaultBaseDelay,
		ShouldRetry: IsRetryable,
	}
}

// =============================================================================
// Classification
// =============================================================================

// HTTPStatuser is implemented by errors that carry an HTTP-like status code.
type HTTPStatuser interface {
	HTTPStatus() int
}

var nonRetryableStatus = map[int]bool{
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusUnprocessableEntity: true,
}

var nonRetryablePhrases = []string{
	"invalid credentials",
	"invalid token",
	"permission denied",
	"user not found",
	"resource not found",
	"validation failed",
	"quota exceeded",
}

var retryablePhrases = []string{
	"network",
	"timeout",
	"timed out",
	"econnreset",
	"connection reset",
	"econnrefused",
	"connection refused",
	"rate limit",
	"too many requests",
}

// IsRetryable reports whether err is worth another attempt.
// Denylisted statuses and phrases never retry. Status-coded errors retry on
// 5xx, 408 and 429. Anything unrecognised is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if apperr.IsCode(err, apperr.CodeCircuitOpen) {
		return false
	}

	status, hasStatus := statusOf(err)
	if hasStatus && nonRetryableStatus[status] {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePhrases {
		if strings.Contains(msg, p) {
			return false
		}
	}

	if hasStatus {
		return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, p := range retryablePhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}

	// 알 수 없는 에러는 일시적 장애로 간주
	return true
}

func statusOf(err error) (int, bool) {
	var s HTTPStatuser
	if errors.As(err, &s) {
		if code := s.HTTPStatus(); code > 0 {
			return code, true
		}
	}
	return 0, false
}

// =============================================================================
// Backoff
// =============================================================================

// ExpectedBackoff is the jitter-free delay for attempt: base * 2^attempt.
func ExpectedBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
}

// Backoff returns ExpectedBackoff jittered uniformly by ±10%, floored at 0.
func Backoff(attempt int, base time.Duration) time.Duration {
	return jittered(attempt, base, rand.Float64())
}

// jittered applies r in [0,1) as the jitter sample.
func jittered(attempt int, base time.Duration, r float64) time.Duration {
	expected := float64(ExpectedBackoff(attempt, base))
	d := expected + expected*jitterRatio*(r*2-1)
	if d < 0 {
		return 0
	}
	return time.Duration(math.Floor(d))
}

// exponentialJitter adapts Backoff to backoff.BackOff.
type exponentialJitter struct {
	rc *RetryContext
}

func (b *exponentialJitter) NextBackOff() time.Duration {
	d := Backoff(b.rc.Attempt, b.rc.BaseDelay)
	b.rc.Attempt++
	return d
}

func (b *exponentialJitter) Reset() {
	b.rc.Attempt = 0
}

// =============================================================================
// WithRetry
// =============================================================================

// WithRetry runs op until it succeeds, the predicate rejects the error, the
// retry budget is spent or ctx is done. The last error is returned unchanged.
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = IsRetryable
	}

	rc := &RetryContext{MaxRetries: opts.MaxRetries, BaseDelay: opts.BaseDelay}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&exponentialJitter{rc: rc}, uint64(opts.MaxRetries)),
		ctx,
	)

	operation := func() (T, error) {
		v, err := op(ctx)
		if err != nil && !opts.ShouldRetry(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, delay time.Duration) {
		if opts.OnRetry != nil {
			// rc.Attempt는 NextBackOff 이후 이미 증가된 상태
			opts.OnRetry(err, rc.Attempt, delay)
		}
	}

	return backoff.RetryNotifyWithData(operation, policy, notify)
}
