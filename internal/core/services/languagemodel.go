package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
	"github.com/gkabbz/github-delivery-visibility/internal/retry"
)

// Default language model client settings.
const (
	DefaultCallTimeout       = 60 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 4
)

// LanguageModelConfig tunes retries, timeouts and throttling of model calls.
type LanguageModelConfig struct {
	// Retry is applied to every call. Zero fields take retry defaults.
	Retry retry.Policy

	// CallTimeout bounds each attempt separately from the retry budget.
	CallTimeout time.Duration

	// RequestsPerSecond and Burst configure the token bucket shared by all
	// attempts. A non-positive rate disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// DefaultLanguageModelConfig returns the production settings.
func DefaultLanguageModelConfig() LanguageModelConfig {
	return LanguageModelConfig{
		Retry:             retry.DefaultPolicy(),
		CallTimeout:       DefaultCallTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// LanguageModelRequest is one logical completion issued by a pipeline stage.
type LanguageModelRequest struct {
	Operation   domain.Operation
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// LanguageModelClient adds retries, per-attempt timeouts, throttling and
// cost accounting on top of a raw LLMService.
//
// Every attempt produces a UsageRecord. Records go to the usage ledger
// carried by the request context, if any.
type LanguageModelClient struct {
	llm         driven.LLMService
	pricing     domain.PricingTable
	policy      retry.Policy
	callTimeout time.Duration
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewLanguageModelClient creates a client. The configured model must be
// priced; an unknown model is rejected here rather than billed as zero.
func NewLanguageModelClient(
	llm driven.LLMService, pricing domain.PricingTable, cfg LanguageModelConfig,
) (*LanguageModelClient, error) {
	if llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if _, err := pricing.Price(llm.ModelName()); err != nil {
		return nil, fmt.Errorf("price %s model: %w", llm.Provider(), err)
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &LanguageModelClient{
		llm:         llm,
		pricing:     pricing,
		policy:      cfg.Retry,
		callTimeout: cfg.CallTimeout,
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		now:         time.Now,
	}, nil
}

// Model returns the model identifier used for pricing.
func (c *LanguageModelClient) Model() string {
	return c.llm.ModelName()
}

// Provider returns the provider identifier.
func (c *LanguageModelClient) Provider() string {
	return c.llm.Provider()
}

// Complete runs req with retries and returns the text of the successful
// attempt together with its usage record.
func (c *LanguageModelClient) Complete(
	ctx context.Context, req LanguageModelRequest,
) (string, domain.UsageRecord, error) {
	ledger := domain.UsageLedgerFrom(ctx)

	var (
		text string
		last domain.UsageRecord
	)
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		completion, usage, err := c.attempt(ctx, req, attempt)
		last = usage
		if ledger != nil {
			ledger.Record(usage)
		}
		if err != nil {
			logger.DebugFields("model attempt failed", logger.Fields{
				"operation": req.Operation,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			return err
		}
		text = completion.Text
		return nil
	})
	if err != nil {
		return "", last, fmt.Errorf("%s via %s: %w", req.Operation, c.llm.Provider(), err)
	}
	return text, last, nil
}

// attempt performs a single call under its own deadline.
func (c *LanguageModelClient) attempt(
	ctx context.Context, req LanguageModelRequest, attempt int,
) (*driven.Completion, domain.UsageRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	usage := domain.UsageRecord{
		Operation: req.Operation,
		Provider:  c.llm.Provider(),
		Model:     c.llm.ModelName(),
		Attempt:   attempt,
	}

	start := c.now()
	completion, err := c.llm.Complete(callCtx, driven.CompletionRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	usage.Latency = c.now().Sub(start)

	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			usage.InputTokens, usage.OutputTokens = pe.InputTokens, pe.OutputTokens
			switch {
			case pe.IsAuthError():
				logger.Error("%s rejected the API key (status %d)", pe.Provider, pe.StatusCode)
			case pe.IsRateLimited():
				logger.Warn("%s rate limited %s attempt %d", pe.Provider, req.Operation, attempt)
			}
		}
		usage.Error = err.Error()
		usage.CostUSD = c.cost(usage)
		return nil, usage, err
	}

	usage.InputTokens = completion.InputTokens
	usage.OutputTokens = completion.OutputTokens
	usage.CostUSD = c.cost(usage)
	return completion, usage, nil
}

// cost prices usage against the configured model, which was validated at
// construction.
func (c *LanguageModelClient) cost(u domain.UsageRecord) float64 {
	cost, err := c.pricing.Cost(u.Model, u.InputTokens, u.OutputTokens)
	if err != nil {
		logger.Warn("pricing %s: %v", u.Model, err)
		return 0
	}
	return cost
}
