package cache

import (
	"context"
	"time"
)

// Cache stores serialized ranking pages. Implementations swallow backend
// errors on reads and writes: a cache failure must never fail a request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Invalidate removes every key starting with prefix.
	Invalidate(ctx context.Context, prefix string) error
	Close() error
}

// NoopCache never stores anything. Used when Redis is not configured.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (NoopCache) Set(context.Context, string, []byte, time.Duration) {}
func (NoopCache) Invalidate(context.Context, string) error           { return nil }
func (NoopCache) Close() error                                       { return nil }
