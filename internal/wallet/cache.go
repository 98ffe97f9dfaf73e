package wallet

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CachedWallet memoizes balance reads for a short TTL. Any trade that
// reaches the network or the paper book drops the cached value.
type CachedWallet struct {
	Wallet
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedWallet wraps w. A ttl <= 0 uses 15 seconds.
func NewCachedWallet(w Wallet, ttl time.Duration) (*CachedWallet, error) {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedWallet{Wallet: w, cache: cache, ttl: ttl}, nil
}

func (c *CachedWallet) key() string { return c.Chain() + ":" + c.Address() }

func (c *CachedWallet) GetBalance(ctx context.Context) (float64, error) {
	if v, ok := c.cache.Get(c.key()); ok {
		return v.(float64), nil
	}
	bal, err := c.Wallet.GetBalance(ctx)
	if err != nil {
		return 0, err
	}
	c.cache.SetWithTTL(c.key(), bal, 1, c.ttl)
	c.cache.Wait()
	return bal, nil
}

func (c *CachedWallet) ExecuteTrade(ctx context.Context, p TradeParams) (TradeResult, error) {
	res, err := c.Wallet.ExecuteTrade(ctx, p)
	if err == nil && res.Status != StatusRejected {
		c.cache.Del(c.key())
	}
	return res, err
}

// Close releases the cache.
func (c *CachedWallet) Close() { c.cache.Close() }
