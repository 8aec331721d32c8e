package travel

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
)

// RetryConfig bounds how hard wrapped providers are retried.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	return c
}

// RetryingProvider retries a flaky provider with exponential backoff and an
// optional shared rate limiter. Once the budget is exhausted it reports a
// *ProviderError; callers downgrade that to an infeasible candidate.
type RetryingProvider struct {
	name    string
	inner   Provider
	cfg     RetryConfig
	limiter *rate.Limiter
	log     logger.Logger
}

// NewRetryingProvider wraps inner. limiter may be nil; it is shared with the
// resolver wrapper when both talk to the same remote service.
func NewRetryingProvider(name string, inner Provider, cfg RetryConfig, limiter *rate.Limiter, log logger.Logger) *RetryingProvider {
	if log == nil {
		log = logger.Nop{}
	}
	return &RetryingProvider{name: name, inner: inner, cfg: cfg.withDefaults(), limiter: limiter, log: log}
}

func (p *RetryingProvider) Estimate(ctx context.Context, q Query) (Estimate, error) {
	var est Estimate
	err := retryLoop(ctx, p.name, p.cfg, p.limiter, p.log, func() error {
		var inner error
		est, inner = p.inner.Estimate(ctx, q)
		return inner
	})
	if err != nil {
		return Estimate{}, err
	}
	return est, nil
}

// RetryingResolver is the resolver counterpart of RetryingProvider.
type RetryingResolver struct {
	name    string
	inner   Resolver
	cfg     RetryConfig
	limiter *rate.Limiter
	log     logger.Logger
}

func NewRetryingResolver(name string, inner Resolver, cfg RetryConfig, limiter *rate.Limiter, log logger.Logger) *RetryingResolver {
	if log == nil {
		log = logger.Nop{}
	}
	return &RetryingResolver{name: name, inner: inner, cfg: cfg.withDefaults(), limiter: limiter, log: log}
}

func (r *RetryingResolver) Candidates(ctx context.Context, category string, origin model.Coordinate, access model.AccessType, budget time.Duration) ([]Candidate, error) {
	var out []Candidate
	err := retryLoop(ctx, r.name, r.cfg, r.limiter, r.log, func() error {
		var inner error
		out, inner = r.inner.Candidates(ctx, category, origin, access, budget)
		return inner
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func retryLoop(ctx context.Context, name string, cfg RetryConfig, limiter *rate.Limiter, log logger.Logger, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return &ProviderError{Provider: name, Attempts: attempt, Err: err}
			}
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		log.Warnf("travel provider %s attempt %d failed: %v", name, attempt+1, lastErr)
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(cfg.Backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return &ProviderError{Provider: name, Attempts: attempt + 1, Err: ctx.Err()}
		}
	}
	return &ProviderError{Provider: name, Attempts: cfg.MaxRetries + 1, Err: lastErr}
}
