package slotcache

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-process cache for single-replica deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	val     []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}, now: time.Now}
}

func (c *Memory) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, bool, error)) ([]byte, error) {
	now := c.now()
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Before(e.expires) {
			c.mu.Unlock()
			return e.val, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	val, store, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if store && ttl > 0 {
		c.mu.Lock()
		c.entries[key] = entry{val: val, expires: now.Add(ttl)}
		c.mu.Unlock()
	}
	return val, nil
}

// Ready always succeeds; there is nothing to reach.
func (c *Memory) Ready(context.Context) error { return nil }

func (c *Memory) Close() error { return nil }
