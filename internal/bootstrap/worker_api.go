package bootstrap

import (
	"strings"

	"order_worker/adapter/in/http"
	"order_worker/config"
	"order_worker/core/port/out"
	"order_worker/infra/middleware"
	"order_worker/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	bodyLimit       = 10 * 1024 * 1024 // 10MB, fiber 레벨 상한
	apiMaxBodySize  = 2 * 1024 * 1024  // 주문 메일 HTML 기준
	rateLimitPerMin = 120
	rateLimitBurst  = 20
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "order-worker-api",
		Pretty:  cfg.IsDevelopment(),
	})

	if cfg.JWTSecret == "" && !cfg.IsDevelopment() {
		logger.Warn("JWT_SECRET not set, authenticated routes will reject every request")
	}

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	zlog := logger.Component("http")
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(zlog),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json: 표준 encoding/json 대비 빠른 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    bodyLimit,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(zlog))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		// "*"와 credentials는 함께 쓸 수 없음
		allowCredentials = false
		if cfg.IsProduction() {
			allowOrigins = ""
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	http.NewHealthHandler(http.HealthDeps{
		DB:           deps.DB,
		Redis:        deps.Redis,
		Mongo:        deps.Mongo,
		Stages:       deps.Stages,
		BreakerState: deps.BreakerState,
	}).Register(app)

	extractionHandler := newExtractionHandler(deps)

	if cfg.IsDevelopment() && cfg.DevUserID != "" {
		RegisterDevRoutes(app, extractionHandler, cfg.DevUserID)
	}

	// API routes (with auth and rate limiting)
	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	api.Use(middleware.NewUserRateLimiter(rateLimitPerMin, rateLimitBurst).Handler())
	api.Use(middleware.MaxBodySize(apiMaxBodySize))

	extractionHandler.Register(api)

	logger.Info("API server initialized successfully")
	return app, cleanup, nil
}

// newExtractionHandler passes only the configured backends; a nil pointer
// must not become a non-nil interface.
func newExtractionHandler(deps *Dependencies) *http.ExtractionHandler {
	var (
		emails  out.EmailStore
		queue   http.BatchQueue
		results out.BatchResultStore
	)
	if deps.Emails != nil {
		emails = deps.Emails
	}
	if deps.Producer != nil {
		queue = deps.Producer
	}
	if deps.Results != nil {
		results = deps.Results
	}
	return http.NewExtractionHandler(deps.Imports, deps.Categorizer, emails, queue, results)
}
