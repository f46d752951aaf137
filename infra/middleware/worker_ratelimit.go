package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"order_worker/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// UserRateLimiter throttles requests per authenticated user, falling back
// to the client IP. Extraction endpoints fan out to the language model, so
// they get their own limiter.
type UserRateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute requests with the given burst.
func NewUserRateLimiter(perMinute, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &UserRateLimiter{
		limit:    limit,
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (rl *UserRateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
		// 방문자 맵 정리는 새 키가 생길 때만
		for k, old := range rl.visitors {
			if now.Sub(old.lastSeen) > rl.idle && k != key {
				delete(rl.visitors, k)
			}
		}
	}
	v.lastSeen = now
	return v.limiter
}

// Handler returns the fiber middleware.
func (rl *UserRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if uid, ok := c.Locals("user_id").(uuid.UUID); ok {
			key = uid.String()
		}

		lim := rl.get(key)
		if !lim.AllowN(rl.now(), 1) {
			retry := int(math.Ceil(1 / float64(rl.limit)))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return apperr.ErrRateLimited
		}
		return c.Next()
	}
}
