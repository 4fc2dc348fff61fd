package cache

import (
	"fmt"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/rs/zerolog/log"
)

// NewFromConfig creates the token cache described by the configuration,
// wrapped with instrumentation.
//
// A zero sliding expiration disables caching: the returned cache never stores
// anything. Otherwise an in-memory cache bounded by cacheConfig.MaxSize is
// created.
func NewFromConfig[T any](cacheConfig config.CacheConfig) (TokenCache[T], error) {
	if cacheConfig.SlidingExpiration == 0 {
		log.Info().
			Str("cache_type", "disabled").
			Msg("token caching disabled: sliding expiration is zero")

		return NewInstrumented[T](NewDisabled[T](), "disabled"), nil
	}

	log.Info().
		Str("cache_type", "memory").
		Dur("sliding_expiration", cacheConfig.SlidingExpiration).
		Int("max_size", cacheConfig.MaxSize).
		Msg("initializing in-memory cache")

	memory, err := NewMemory[T](cacheConfig.SlidingExpiration, cacheConfig.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return NewInstrumented[T](memory, "memory"), nil
}
