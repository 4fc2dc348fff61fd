package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maypok86/otter/v2/stats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/chinmina/chinmina-gateway/internal/cache"

var (
	metricsOnce  sync.Once
	tokenLookups metric.Int64Counter
	tokenLatency metric.Float64Histogram
	tokenEntries metric.Int64ObservableGauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)

		var err error
		tokenLookups, err = meter.Int64Counter(
			"token_cache.operations",
			metric.WithDescription("Token cache operations by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		tokenLatency, err = meter.Float64Histogram(
			"token_cache.operation.duration",
			metric.WithDescription("Token cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}

		tokenEntries, err = meter.Int64ObservableGauge(
			"token_cache.entries",
			metric.WithDescription("Approximate number of cached tokens"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// sizer is implemented by caches that can report their entry count.
type sizer interface {
	Size() int
}

// Instrumented reports each operation on the wrapped cache as metrics and as
// attributes on the active span. Keys are never recorded, as they are derived
// from client credentials.
type Instrumented[T any] struct {
	wrapped   TokenCache[T]
	kind      attribute.KeyValue
	gaugeReg  metric.Registration
	closeOnce sync.Once
}

// NewInstrumented wraps cache, labelling its metrics with cacheType. When the
// cache can report its size, an entry-count gauge is registered until Close.
func NewInstrumented[T any](cache TokenCache[T], cacheType string) *Instrumented[T] {
	initMetrics()

	i := &Instrumented[T]{
		wrapped: cache,
		kind:    attribute.String("cache.type", cacheType),
	}

	if s, ok := cache.(sizer); ok && tokenEntries != nil {
		reg, err := otel.Meter(meterName).RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(tokenEntries, int64(s.Size()), metric.WithAttributes(i.kind))
			return nil
		}, tokenEntries)
		if err != nil {
			otel.Handle(err)
		} else {
			i.gaugeReg = reg
		}
	}

	return i
}

func (i *Instrumented[T]) Get(ctx context.Context, key string) (T, bool, error) {
	start := time.Now()
	value, found, err := i.wrapped.Get(ctx, key)

	outcome := "miss"
	switch {
	case err != nil:
		outcome = "error"
	case found:
		outcome = "hit"
	}
	i.observe(ctx, "get", outcome, start)

	return value, found, err
}

func (i *Instrumented[T]) Set(ctx context.Context, key string, value T) error {
	start := time.Now()
	err := i.wrapped.Set(ctx, key, value)

	i.observe(ctx, "set", errorOutcome(err), start)

	return err
}

func (i *Instrumented[T]) Invalidate(ctx context.Context, key string) error {
	start := time.Now()
	err := i.wrapped.Invalidate(ctx, key)

	i.observe(ctx, "invalidate", errorOutcome(err), start)

	return err
}

// Close stops the entry-count gauge and closes the wrapped cache. Calls after
// the first return nil.
func (i *Instrumented[T]) Close() error {
	var err error
	i.closeOnce.Do(func() {
		err = i.wrapped.Close()

		if i.gaugeReg != nil {
			if unregErr := i.gaugeReg.Unregister(); unregErr != nil {
				err = errors.Join(err, unregErr)
			}
		}
	})

	return err
}

// Stats returns the statistics of the wrapped cache, if it records them.
func (i *Instrumented[T]) Stats() (stats.Stats, bool) {
	recorder, ok := i.wrapped.(interface{ Stats() stats.Stats })
	if !ok {
		return stats.Stats{}, false
	}

	return recorder.Stats(), true
}

func (i *Instrumented[T]) observe(ctx context.Context, operation, outcome string, start time.Time) {
	elapsed := time.Since(start).Seconds()
	op := attribute.String("cache.operation", operation)

	if tokenLookups != nil {
		tokenLookups.Add(ctx, 1, metric.WithAttributes(i.kind, op, attribute.String("cache.outcome", outcome)))
	}

	if tokenLatency != nil {
		tokenLatency.Record(ctx, elapsed, metric.WithAttributes(i.kind, op))
	}

	trace.SpanFromContext(ctx).SetAttributes(
		i.kind,
		attribute.String("cache."+operation+".outcome", outcome),
		attribute.Float64("cache."+operation+".duration", elapsed),
	)
}

func errorOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
