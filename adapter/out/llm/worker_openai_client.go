// Package llm adapts an OpenAI-compatible chat completion endpoint to the
// out.LanguageModelClient port.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"order_worker/core/port/out"
	"order_worker/pkg/apperr"
	"order_worker/pkg/httputil"
	"order_worker/pkg/resilience"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	DefaultModel = "gpt-4o-mini"
	serviceName  = "llm"
)

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string

	// RequestsPerSec throttles outgoing calls; 0 disables throttling.
	RequestsPerSec float64
	Burst          int

	// HTTPTimeout is the transport-level ceiling. Per-call deadlines come
	// from the caller's context.
	HTTPTimeout time.Duration

	Breaker *resilience.CircuitBreakerConfig
}

// Client calls the chat completion API through a rate limiter and a
// circuit breaker.
type Client struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

var _ out.LanguageModelClient = (*Client)(nil)

func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperr.ConfigError("LLM_API_KEY is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = httputil.NewClient(httputil.LanguageModelClientConfig(cfg.HTTPTimeout))

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg == nil {
		breakerCfg = resilience.DefaultCircuitBreakerConfig(serviceName)
	}

	l := log.With().Str("component", "llm_client").Logger()
	return &Client{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker(breakerCfg, l),
		log:     l,
	}, nil
}

// Complete sends one chat completion request and returns the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string, opts out.CompletionOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// 대기 시간이 deadline을 넘는 경우
		return "", apperr.UpstreamTransient(serviceName, http.StatusTooManyRequests, err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	content, err := c.breaker.Execute(func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", apperr.MalformedResponse("no choices in completion", nil)
		}
		return resp.Choices[0].Message.Content, nil
	})

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("model", c.model).
		Bool("json_mode", opts.JSONMode).
		Dur("duration", time.Since(start)).
		Str("breaker", c.breaker.State()).
		Msg("chat completion")
	return content, err
}

// BreakerState reports the circuit breaker state for health endpoints.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// classify maps client errors onto apperr values carrying the upstream
// status so the retry policy and breaker can read it.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	message := err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == 0 || status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return apperr.UpstreamTransient(serviceName, status, err)
	}
	return apperr.Wrap(err, apperr.CodeExternalError, message, status)
}
