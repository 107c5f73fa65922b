package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	keyPrefix = "shortlink:"

	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

// LinkCache stores short code -> full URL pairs in Redis. A nil *LinkCache
// is a valid cache that never hits. Calls go through a circuit breaker; while
// it is open reads report a miss and writes are dropped.
type LinkCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[string]
}

// NewLinkCache builds a cache for addr without contacting Redis.
func NewLinkCache(addr string) *LinkCache {
	return NewLinkCacheFromClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}))
}

// NewLinkCacheFromClient wraps an existing client.
func NewLinkCacheFromClient(client *redis.Client) *LinkCache {
	return &LinkCache{
		client: client,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "redis-link-cache",
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
		}),
	}
}

func (c *LinkCache) Get(ctx context.Context, code string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	v, err := c.breaker.Execute(func() (string, error) {
		v, err := c.client.Get(ctx, keyPrefix+code).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return v, err
	})
	if isBreakerRejection(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return v, v != "", nil
}

func (c *LinkCache) Set(ctx context.Context, code, fullURL string, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (string, error) {
		return "", c.client.Set(ctx, keyPrefix+code, fullURL, ttl).Err()
	})
	if isBreakerRejection(err) {
		return nil
	}
	return errors.Wrap(err, "redis set")
}

func (c *LinkCache) Delete(ctx context.Context, code string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (string, error) {
		return "", c.client.Del(ctx, keyPrefix+code).Err()
	})
	if isBreakerRejection(err) {
		return nil
	}
	return errors.Wrap(err, "redis del")
}

// Ping checks that Redis answers. It bypasses the breaker.
func (c *LinkCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return errors.Wrap(c.client.Ping(pingCtx).Err(), "failed to connect to redis")
}

// State reports the circuit breaker state, "closed" when healthy.
func (c *LinkCache) State() string {
	if c == nil || c.breaker == nil {
		return gobreaker.StateClosed.String()
	}
	return c.breaker.State().String()
}

func (c *LinkCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
