package cache

import "context"

// Disabled is the cache used when the sliding expiration window is zero.
// Nothing is ever stored, so every lookup misses.
type Disabled[T any] struct{}

func NewDisabled[T any]() *Disabled[T] {
	return &Disabled[T]{}
}

func (Disabled[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	return zero, false, nil
}

func (Disabled[T]) Set(ctx context.Context, key string, token T) error {
	return nil
}

func (Disabled[T]) Invalidate(ctx context.Context, key string) error {
	return nil
}

func (Disabled[T]) Close() error {
	return nil
}
