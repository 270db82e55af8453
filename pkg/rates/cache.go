package rates

import (
	"context"
	"sync"
	"time"

	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

type cachedRate struct {
	rate    money.ExchangeRate
	expires time.Time
}

// Cache remembers rates from next for ttl. Failures are not cached.
type Cache struct {
	next tx.RateProvider
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	rates map[string]cachedRate
}

// NewCache wraps next. A zero ttl disables caching.
func NewCache(next tx.RateProvider, ttl time.Duration) *Cache {
	return &Cache{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		rates: map[string]cachedRate{},
	}
}

func (c *Cache) Rate(ctx context.Context, from, to money.Currency) (money.ExchangeRate, error) {
	if c.ttl <= 0 {
		return c.next.Rate(ctx, from, to)
	}

	key := pairKey(from, to)
	c.mu.Lock()
	hit, ok := c.rates[key]
	c.mu.Unlock()
	if ok && c.now().Before(hit.expires) {
		return hit.rate, nil
	}

	r, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return money.ExchangeRate{}, err
	}

	c.mu.Lock()
	c.rates[key] = cachedRate{rate: r, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return r, nil
}

// Invalidate drops every cached rate
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates = map[string]cachedRate{}
}
