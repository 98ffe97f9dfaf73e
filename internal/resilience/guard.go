package resilience

import (
	"context"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

// Config collects the settings for one guarded service.
type Config struct {
	Breaker       BreakerConfig
	Retry         RetryConfig
	RatePerSecond float64
	Burst         int
}

// DefaultConfig is unlimited in rate with default breaker and retry.
func DefaultConfig() Config {
	return Config{
		Breaker: DefaultBreakerConfig(),
		Retry:   DefaultRetryConfig(),
	}
}

// Guard applies rate limiting, the circuit breaker and retries, in that
// order per attempt, to calls against one service.
type Guard struct {
	service string
	breaker *Breaker
	limiter *Limiter
	retry   RetryConfig
	logger  *zap.Logger
}

// NewGuard builds a guard for service.
func NewGuard(service string, cfg Config, logger *zap.Logger) *Guard {
	return &Guard{
		service: service,
		breaker: NewBreaker(service, cfg.Breaker, logger),
		limiter: NewLimiter(cfg.RatePerSecond, cfg.Burst),
		retry:   cfg.Retry,
		logger:  logger,
	}
}

// Do runs fn under the guard. Failures come back as *apperr.ServiceError
// naming the service and op.
func (g *Guard) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := Retry(ctx, g.retry, g.logger, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		return g.breaker.Execute(ctx, fn)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && err == ctx.Err() {
		return err
	}
	return apperr.Service(g.service, op, err)
}

// State reports the breaker state.
func (g *Guard) State() string { return g.breaker.State() }
