package bootstrap

import (
	"context"
	"time"

	"order_worker/adapter/out/cache"
	"order_worker/adapter/out/llm"
	"order_worker/adapter/out/mongodb"
	"order_worker/adapter/out/persistence"
	"order_worker/config"
	"order_worker/core/port/out"
	"order_worker/core/service/categorize"
	"order_worker/core/service/extraction"
	"order_worker/core/service/extraction/retailer"
	"order_worker/infra/database"
	"order_worker/internal/stream"
	"order_worker/pkg/apperr"
	pkgcache "order_worker/pkg/cache"
	"order_worker/pkg/logger"
	"order_worker/pkg/metrics"
	"order_worker/pkg/resilience"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	consumerGroup   = "extract-workers"
	stageWindowSize = 1000
	startupTimeout  = 15 * time.Second
)

// Dependencies holds every backend and service shared by the API and the
// worker. Backends whose URL is unset stay nil and their features are
// disabled.
type Dependencies struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	// Adapters
	Inventory *persistence.InventoryRepository
	Emails    *mongodb.EmailSourceAdapter
	Results   *cache.BatchResultStore
	LLM       *llm.Client

	// Services
	Stages       *metrics.StageRegistry
	Categorizer  *categorize.Categorizer
	Orchestrator *extraction.Orchestrator
	Batch        *extraction.BatchService
	Imports      *extraction.ImportService

	// Messaging
	Stream   *stream.RedisStream
	Producer *stream.Producer
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// PostgreSQL (inventory)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, apperr.DatabaseError("connect postgres", err)
		}
		deps.DB = db
		deps.Inventory = persistence.NewInventoryRepository(db)
		cleanups = append(cleanups, func() { db.Close() })
		logger.Info("PostgreSQL connected")
	} else {
		logger.Warn("DATABASE_URL not set, inventory disabled")
	}

	// Redis (semantic cache, batch results, job stream)
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, apperr.ExternalError("redis", err)
		}
		deps.Redis = client
		deps.Results = cache.NewBatchResultStore(pkgcache.NewRedisCache(client, ""))
		deps.Stream = stream.NewRedisStream(client, consumerGroup, cfg.WorkerBlock(), logger.Component("redis_stream"))
		deps.Producer = stream.NewProducer(deps.Stream)
		cleanups = append(cleanups, func() { client.Close() })
		logger.Info("Redis connected")
	} else {
		logger.Warn("REDIS_URL not set, semantic cache is memory-only and async batches are disabled")
	}

	// MongoDB (order emails)
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			cleanup()
			return nil, nil, apperr.DatabaseError("connect mongodb", err)
		}
		deps.Mongo = client
		deps.Emails = mongodb.NewEmailSourceAdapter(client.Database(cfg.MongoDBName))
		cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })
		if err := deps.Emails.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure order_emails indexes")
		}
		logger.Info("MongoDB connected (database: %s)", cfg.MongoDBName)
	} else {
		logger.Warn("MONGODB_URL not set, emails must be sent inline")
	}

	// Language model
	if cfg.LLMAPIKey != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        cfg.LLMBaseURL,
			Model:          cfg.LLMModel,
			RequestsPerSec: cfg.LLMRequestsPerSec,
			Burst:          cfg.LLMBurst,
			HTTPTimeout:    cfg.LLMTimeout() + 5*time.Second,
		}, logger.Component("llm"))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.LLM = client
		logger.Info("Language model client initialized (model: %s)", cfg.LLMModel)
	} else {
		logger.Warn("LLM_API_KEY not set, semantic extraction disabled")
	}

	deps.buildServices(logger.Default().Zerolog())
	return deps, cleanup, nil
}

// buildServices wires the extraction pipeline over whichever backends are
// available. Optional ports are passed as untyped nil when missing.
func (d *Dependencies) buildServices(log zerolog.Logger) {
	cfg := d.Config
	d.Stages = metrics.NewStageRegistry(stageWindowSize)
	d.Categorizer = categorize.New()

	var semantic extraction.SemanticStage
	if d.LLM != nil {
		var l2 *pkgcache.RedisCache
		if d.Redis != nil {
			l2 = pkgcache.NewRedisCache(d.Redis, "")
		}
		extractionCache := cache.NewExtractionCache(l2, pkgcache.NewL1Cache(pkgcache.DefaultL1Config()))
		semantic = extraction.NewSemanticExtractor(d.LLM, extractionCache, extraction.SemanticConfig{
			TextBudget:  cfg.SemanticTextBudget,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: float32(cfg.LLMTemperature),
			CacheTTL:    cfg.ExtractCacheTTL(),
		}, log)
	}

	orchCfg := extraction.DefaultOrchestratorConfig()
	orchCfg.ComplexityThreshold = cfg.ComplexityThreshold
	orchCfg.SemanticTimeout = cfg.LLMTimeout()
	orchCfg.Retry = resilience.RetryOptions{
		MaxRetries:  cfg.LLMMaxRetries,
		BaseDelay:   cfg.LLMRetryBaseDelay(),
		ShouldRetry: resilience.IsRetryable,
	}
	d.Orchestrator = extraction.NewOrchestrator(
		retailer.NewDefaultRegistry(),
		semantic,
		extraction.NewGenericParser(),
		d.Stages,
		orchCfg,
		log,
	)

	var (
		snapshot  out.InventorySnapshot
		inventory out.InventoryRepository
		emails    out.EmailSource
	)
	if d.Inventory != nil {
		snapshot, inventory = d.Inventory, d.Inventory
	}
	if d.Emails != nil {
		emails = d.Emails
	}

	d.Batch = extraction.NewBatchService(d.Orchestrator, d.Categorizer, snapshot, inventory, cfg.ExtractWorkers, log)
	d.Imports = extraction.NewImportService(emails, inventory, d.Orchestrator, d.Batch, d.Categorizer, cfg.BatchMaxEmails, log)
}

// BreakerState reports the language model breaker, or "disabled".
func (d *Dependencies) BreakerState() string {
	if d.LLM == nil {
		return "disabled"
	}
	return d.LLM.BreakerState()
}
