package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redskulldevv/omni-agi/internal/apperr"
	"go.uber.org/zap"
)

// RetryConfig bounds exponential backoff.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig retries 3 times starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Retry runs op until it succeeds, the retries are spent or ctx ends.
// Validation errors, not-found errors and an open circuit are not retried.
func Retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Debug("retrying after error", zap.Error(err), zap.Duration("wait", wait))
	})
}

func permanent(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) ||
		apperr.IsValidation(err) ||
		apperr.IsNotFound(err)
}
