package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/chinmina/chinmina-gateway/internal/cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of a successful exchange.
type Result struct {
	Token    string
	CacheHit bool
}

// Exchanger resolves credentials to tokens, consulting the token cache before
// calling the authorization service.
//
// Concurrent misses for the same key share a single call to the authorization
// service. The shared call is detached from the cancellation of the request
// that started it and is bounded by the exchange request timeout instead; each
// caller still stops waiting when its own context ends.
type Exchanger struct {
	cache    cache.TokenCache[string]
	exchange ExchangeFunc
	inflight singleflight.Group
}

func NewExchanger(tokenCache cache.TokenCache[string], exchange ExchangeFunc) *Exchanger {
	initMetrics()

	return &Exchanger{
		cache:    tokenCache,
		exchange: exchange,
	}
}

// Exchange returns the token for the credential presented on path. A cached
// token is returned when available (which also restarts its idle window);
// otherwise the authorization service is called and a successful result is
// cached.
func (e *Exchanger) Exchange(ctx context.Context, credential, path string) (Result, error) {
	key := CacheKey(credential, path)

	token, found, err := e.cache.Get(ctx, key)
	if err != nil {
		// a broken cache shouldn't stop exchanges, treat as a miss
		log.Ctx(ctx).Warn().Err(err).Msg("token cache lookup failed")
	} else if found {
		recordOutcome(ctx, outcomeHit, "")
		return Result{Token: token, CacheHit: true}, nil
	}

	results := e.inflight.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)

		start := time.Now()
		token, err := e.exchange(callCtx, credential, path)
		recordDuration(callCtx, time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}

		if err := e.cache.Set(callCtx, key, token); err != nil {
			log.Ctx(callCtx).Warn().Err(err).Msg("token cache store failed")
		}

		return token, nil
	})

	select {
	case <-ctx.Done():
		recordOutcome(ctx, outcomeFailed, "cancelled")
		return Result{}, ServiceError{Cause: ctx.Err()}

	case res := <-results:
		if res.Err != nil {
			recordOutcome(ctx, outcomeFailed, failureKind(res.Err))
			return Result{}, res.Err
		}

		recordOutcome(ctx, outcomeExchanged, "")
		return Result{Token: res.Val.(string)}, nil
	}
}

func failureKind(err error) string {
	var failure *FailureError
	if errors.As(err, &failure) {
		return failure.Kind.String()
	}

	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return "service"
	}

	return "internal"
}

// Invalidate discards the cached token for the credential presented on path,
// so the next request exchanges again.
func (e *Exchanger) Invalidate(ctx context.Context, credential, path string) error {
	return e.cache.Invalidate(ctx, CacheKey(credential, path))
}
