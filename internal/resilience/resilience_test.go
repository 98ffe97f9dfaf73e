package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

func fastRetry(n uint64) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker("wallet", BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, zap.NewNop())
	fail := func(context.Context) error { return errBoom }

	assert.ErrorIs(t, b.Execute(context.Background(), fail), errBoom)
	assert.ErrorIs(t, b.Execute(context.Background(), fail), errBoom)
	assert.Equal(t, "open", b.State())

	called := false
	err := b.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := NewBreaker("llm", BreakerConfig{MaxFailures: 1}, zap.NewNop())
	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Execute(ctx, func(context.Context) error { return nil }), context.Canceled)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(3), zap.NewNop(), func() error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), zap.NewNop(), func() error {
		attempts++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, attempts, "one call plus two retries")
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	for _, perm := range []error{apperr.Invalid("bad"), apperr.NotFound("goal", "x"), ErrCircuitOpen} {
		attempts := 0
		err := Retry(context.Background(), fastRetry(3), zap.NewNop(), func() error {
			attempts++
			return perm
		})
		assert.ErrorIs(t, err, perm)
		assert.Equal(t, 1, attempts, "%v must not be retried", perm)
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))

	unlimited := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
}

func TestGuardWrapsServiceError(t *testing.T) {
	g := NewGuard("ethereum", Config{Retry: fastRetry(1), Breaker: BreakerConfig{MaxFailures: 10}}, zap.NewNop())

	calls := 0
	err := g.Do(context.Background(), "get_balance", func(context.Context) error {
		calls++
		return errBoom
	})
	var se *apperr.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ethereum", se.Service)
	assert.Equal(t, "get_balance", se.Op)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)

	require.NoError(t, g.Do(context.Background(), "get_balance", func(context.Context) error { return nil }))
}

func TestGuardStopsOnOpenCircuit(t *testing.T) {
	g := NewGuard("solana", Config{Retry: fastRetry(5), Breaker: BreakerConfig{MaxFailures: 2, Timeout: time.Hour}}, zap.NewNop())

	calls := 0
	err := g.Do(context.Background(), "send", func(context.Context) error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, apperr.ErrService)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", g.State())
}
