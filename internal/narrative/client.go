package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/logging"
	"tradecoach/internal/resilience"
	"tradecoach/internal/security"
	"tradecoach/pkg/utils"
)

// Strategy selects which candidate models a single Generate call attempts.
type Strategy string

const (
	// StrategyPrimary attempts only the first candidate.
	StrategyPrimary Strategy = "primary"
	// StrategySequential attempts candidates in order until one succeeds.
	StrategySequential Strategy = "sequential"
)

// ParseStrategy validates a configured strategy name. Empty means primary.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyPrimary:
		return StrategyPrimary, nil
	case StrategySequential:
		return StrategySequential, nil
	default:
		return "", fmt.Errorf("unknown generator strategy %q", s)
	}
}

// Client routes generation requests to providers by model identifier.
type Client struct {
	providers map[string]Provider
	strategy  Strategy
	breakers  *resilience.CircuitBreakerRegistry
	retry     *utils.RetryConfig
	logger    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithProvider registers a provider under its name.
func WithProvider(p Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.providers[p.Name()] = p
		}
	}
}

// WithStrategy sets the candidate strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Client) { c.strategy = s }
}

// WithCircuitBreakers guards every model with its own circuit breaker.
func WithCircuitBreakers(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breakers = resilience.NewCircuitBreakerRegistry(cfg) }
}

// WithRetry retries a rate-limited provider call on the same model with
// backoff. Attempts of 1 or less disable retries.
func WithRetry(cfg utils.RetryConfig) Option {
	return func(c *Client) {
		if cfg.MaxAttempts <= 1 {
			c.retry = nil
			return
		}
		cfg.Retryable = func(err error) bool { return errors.Is(err, apperrors.ErrRateLimited) }
		c.retry = &cfg
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a generation client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		providers: make(map[string]Provider),
		strategy:  StrategyPrimary,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breakers returns the circuit breaker registry, or nil when disabled.
func (c *Client) Breakers() *resilience.CircuitBreakerRegistry {
	return c.breakers
}

// Generate attempts the request's candidate models per the client strategy.
func (c *Client) Generate(ctx context.Context, req Request) (Completion, error) {
	if len(req.Models) == 0 {
		return Completion{}, apperrors.NewGenerationError("", "no candidate models", apperrors.ErrNoModels)
	}

	candidates := req.Models[:1]
	if c.strategy == StrategySequential {
		candidates = req.Models
	}

	var errs []error
	for _, id := range candidates {
		completion, err := c.attempt(ctx, id, req)
		if err == nil {
			return completion, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 1 {
		return Completion{}, errs[0]
	}
	return Completion{}, apperrors.NewGenerationError(strings.Join(candidates, ","), "all candidates failed", errors.Join(errs...))
}

func (c *Client) attempt(ctx context.Context, id string, req Request) (Completion, error) {
	providerName, model := Route(id)
	logger := logging.WithModel(c.logger, model)

	provider, ok := c.providers[providerName]
	if !ok {
		return Completion{}, apperrors.NewGenerationError(model, "provider "+providerName+" not configured", apperrors.ErrUnknownProvider)
	}

	call := func() (string, error) {
		return provider.Complete(ctx, model, req)
	}
	if c.retry != nil {
		once, cfg := call, *c.retry
		call = func() (string, error) {
			return utils.RetryWithResult(ctx, cfg, once)
		}
	}

	start := time.Now()
	var content string
	var err error
	if c.breakers != nil {
		content, err = resilience.ExecuteWithResult(c.breakers.Get(model), ctx, call)
	} else {
		content, err = call()
	}
	if err == nil && strings.TrimSpace(content) == "" {
		err = apperrors.ErrEmptyCompletion
	}
	if err != nil {
		err = classifyContext(ctx, err)
		logging.LogGeneration(logger, model, time.Since(start), security.MaskError(err))
		return Completion{}, apperrors.NewGenerationError(model, reason(err), err)
	}

	logging.LogGeneration(logger, model, time.Since(start), nil)
	return Completion{Content: content, Model: model}, nil
}

// Route resolves a model identifier to a provider name and bare model name.
// An explicit "openai:" or "anthropic:" prefix wins; otherwise claude models
// go to Anthropic and everything else to OpenAI.
func Route(id string) (provider, model string) {
	id = strings.TrimSpace(id)
	if p, m, ok := strings.Cut(id, ":"); ok {
		switch strings.ToLower(p) {
		case ProviderOpenAI, ProviderAnthropic:
			return strings.ToLower(p), m
		}
	}
	if strings.HasPrefix(strings.ToLower(id), "claude") {
		return ProviderAnthropic, id
	}
	return ProviderOpenAI, id
}

func classifyContext(ctx context.Context, err error) error {
	if errors.Is(err, apperrors.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		return "authentication failed"
	case errors.Is(err, apperrors.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, apperrors.ErrEmptyCompletion):
		return "empty completion"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit open"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "provider error"
	}
}
