package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cooldown suppresses repeat alerts for the same key within a TTL.
type Cooldown interface {
	// Acquire reports whether key may alert now and, if so, starts its
	// cooldown.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release ends the cooldown of key early, e.g. after a failed send.
	Release(ctx context.Context, key string) error
}

// MemoryCooldown is a process-local Cooldown.
type MemoryCooldown struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	until map[string]time.Time
}

// NewMemoryCooldown creates an in-memory cooldown with the given TTL.
func NewMemoryCooldown(ttl time.Duration) *MemoryCooldown {
	return &MemoryCooldown{ttl: ttl, now: time.Now, until: make(map[string]time.Time)}
}

// WithClock sets a custom clock function.
func (c *MemoryCooldown) WithClock(now func() time.Time) *MemoryCooldown {
	c.now = now
	return c
}

// Acquire implements Cooldown.
func (c *MemoryCooldown) Acquire(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.until[key]; ok && now.Before(until) {
		return false, nil
	}
	c.until[key] = now.Add(c.ttl)
	return true, nil
}

// Release implements Cooldown.
func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
	return nil
}

// RedisCooldown shares cooldowns across processes with SETNX + TTL.
type RedisCooldown struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCooldown creates a Redis-backed cooldown. Keys are stored as
// prefix + key.
func NewRedisCooldown(client redis.Cmdable, ttl time.Duration, prefix string) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl, prefix: prefix}
}

// Acquire implements Cooldown.
func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, "1", c.ttl).Result()
}

// Release implements Cooldown.
func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

var (
	_ Cooldown = (*MemoryCooldown)(nil)
	_ Cooldown = (*RedisCooldown)(nil)
)
