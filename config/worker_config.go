package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// LLM (OpenAI-compatible endpoint)
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMMaxTokens      int
	LLMTemperature    float64
	LLMTimeoutSec     int
	LLMMaxRetries     int
	LLMRetryBaseMS    int
	LLMRequestsPerSec float64
	LLMBurst          int

	// Extraction
	ComplexityThreshold int
	SemanticTextBudget  int
	ExtractCacheTTLMin  int

	// Worker
	WorkerID        string
	ExtractWorkers  int
	WorkerBlockSec  int
	ResultTTLHour   int
	BatchMaxEmails  int
	BatchTimeoutSec int

	// CORS
	AllowedOrigins []string

	// DevUserID enables unauthenticated /dev routes in development.
	DevUserID string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Storage
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "orders"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// LLM
		LLMAPIKey:         getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:      getEnvInt("LLM_MAX_TOKENS", 4000),
		LLMTemperature:    getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeoutSec:     getEnvInt("LLM_TIMEOUT_SEC", 30),
		LLMMaxRetries:     getEnvInt("LLM_MAX_RETRIES", 3),
		LLMRetryBaseMS:    getEnvInt("LLM_RETRY_BASE_MS", 1000),
		LLMRequestsPerSec: getEnvFloat("LLM_REQUESTS_PER_SEC", 2),
		LLMBurst:          getEnvInt("LLM_BURST", 4),

		// Extraction
		ComplexityThreshold: getEnvInt("EXTRACT_COMPLEXITY_THRESHOLD", 5000),
		SemanticTextBudget:  getEnvInt("EXTRACT_SEMANTIC_TEXT_BUDGET", 8000),
		ExtractCacheTTLMin:  getEnvInt("EXTRACT_CACHE_TTL_MIN", 24*60),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		ExtractWorkers:  getEnvInt("EXTRACT_WORKERS", 4),
		WorkerBlockSec:  getEnvInt("WORKER_BLOCK_SEC", 5),
		ResultTTLHour:   getEnvInt("RESULT_TTL_HOUR", 24),
		BatchMaxEmails:  getEnvInt("BATCH_MAX_EMAILS", 200),
		BatchTimeoutSec: getEnvInt("BATCH_TIMEOUT_SEC", 600),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		DevUserID: getEnv("DEV_USER_ID", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ExtractWorkers < 1 {
		return fmt.Errorf("EXTRACT_WORKERS must be >= 1, got %d", c.ExtractWorkers)
	}
	if c.ComplexityThreshold < 0 {
		return fmt.Errorf("EXTRACT_COMPLEXITY_THRESHOLD must be >= 0, got %d", c.ComplexityThreshold)
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must be >= 0, got %d", c.LLMMaxRetries)
	}
	return nil
}

// LLMTimeout is the hard per-call deadline for the language model.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// LLMRetryBaseDelay is the first retry delay for language model calls.
func (c *Config) LLMRetryBaseDelay() time.Duration {
	return time.Duration(c.LLMRetryBaseMS) * time.Millisecond
}

func (c *Config) ExtractCacheTTL() time.Duration {
	return time.Duration(c.ExtractCacheTTLMin) * time.Minute
}

// WorkerBlock is how long the stream consumer waits for new jobs.
func (c *Config) WorkerBlock() time.Duration {
	return time.Duration(c.WorkerBlockSec) * time.Second
}

func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLHour) * time.Hour
}

// BatchTimeout bounds one queued batch job.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
