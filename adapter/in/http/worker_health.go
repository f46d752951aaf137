package http

import (
	"context"
	"time"

	"order_worker/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthDeps are the optional backends /ready checks. Nil means not
// configured.
type HealthDeps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	Stages       *metrics.StageRegistry
	BreakerState func() string // language model circuit breaker
}

type HealthHandler struct {
	deps HealthDeps
}

func NewHealthHandler(deps HealthDeps) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics/stages", h.Stages)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true
	check := func(name string, configured bool, ping func() error) {
		if !configured {
			checks[name] = "not configured"
			return
		}
		if err := ping(); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			return
		}
		checks[name] = "healthy"
	}

	check("postgres", h.deps.DB != nil, func() error { return h.deps.DB.PingContext(ctx) })
	check("redis", h.deps.Redis != nil, func() error { return h.deps.Redis.Ping(ctx).Err() })
	check("mongodb", h.deps.Mongo != nil, func() error { return h.deps.Mongo.Ping(ctx, nil) })

	body := fiber.Map{
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.DB != nil {
		stats := metrics.GetDBPoolStats(h.deps.DB.DB)
		body["postgres_pool"] = fiber.Map{
			"stats":  stats,
			"health": metrics.AssessDBPoolHealth(stats),
		}
	}
	if h.deps.BreakerState != nil {
		// breaker 상태는 readiness에 반영하지 않음
		body["llm_breaker"] = h.deps.BreakerState()
	}

	body["status"] = "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		body["status"] = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(body)
}

// Stages reports per-stage latency and outcome counts.
func (h *HealthHandler) Stages(c *fiber.Ctx) error {
	if h.deps.Stages == nil {
		return c.JSON(fiber.Map{"stages": fiber.Map{}})
	}
	stages := fiber.Map{}
	for name, s := range h.deps.Stages.AllStats() {
		stages[name] = s.ToMap()
	}
	return c.JSON(fiber.Map{"stages": stages})
}
