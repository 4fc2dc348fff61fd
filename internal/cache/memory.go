package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-memory cache implementation using otter. Entries expire
// once they have not been read or written for the configured window: every
// access pushes the expiry out by the full window again.
type Memory[T any] struct {
	cache   *otter.Cache[string, T]
	window  time.Duration
	counter *stats.Counter
}

// NewMemory creates a new in-memory cache with the specified sliding
// expiration window and max size.
func NewMemory[T any](window time.Duration, maxSize int) (*Memory[T], error) {
	if window <= 0 {
		return nil, fmt.Errorf("sliding expiration must be positive, got %s", window)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("maximum size must be positive, got %d", maxSize)
	}

	counter := stats.NewCounter()
	cache, err := otter.New(&otter.Options[string, T]{
		MaximumSize:      maxSize,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryAccessing[string, T](window),
	})
	if err != nil {
		return nil, err
	}

	return &Memory[T]{
		cache:   cache,
		window:  window,
		counter: counter,
	}, nil
}

// Get retrieves a token from the cache, restarting its idle window.
// Returns the token, whether it was found, and any error.
func (m *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	value, ok := m.cache.GetIfPresent(key)
	if !ok {
		var zero T
		return zero, false, nil
	}

	return value, true, nil
}

// Set stores a token in the cache, replacing any existing entry for the key.
func (m *Memory[T]) Set(ctx context.Context, key string, token T) error {
	m.cache.Set(key, token)
	return nil
}

// Invalidate removes a token from the cache.
func (m *Memory[T]) Invalidate(ctx context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Close discards all cached entries.
func (m *Memory[T]) Close() error {
	m.cache.InvalidateAll()
	return nil
}

// Stats returns a snapshot of the hit, miss and eviction counts recorded
// since the cache was created.
func (m *Memory[T]) Stats() stats.Stats {
	return m.counter.Snapshot()
}

// Size returns the approximate number of entries held.
func (m *Memory[T]) Size() int {
	return m.cache.EstimatedSize()
}
