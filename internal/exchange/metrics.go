package exchange

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSkipped   = "skipped"
	outcomeHit       = "hit"
	outcomeExchanged = "exchanged"
	outcomeFailed    = "failed"
)

var (
	metricsOnce       sync.Once
	exchangeOutcomes  metric.Int64Counter
	exchangeDurations metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/chinmina/chinmina-gateway/internal/exchange")

		var err error
		exchangeOutcomes, err = meter.Int64Counter(
			"exchange.requests",
			metric.WithDescription("Credential exchanges by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		exchangeDurations, err = meter.Float64Histogram(
			"exchange.duration",
			metric.WithDescription("Duration of calls to the authorization service"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

func recordOutcome(ctx context.Context, outcome string, kind string) {
	if exchangeOutcomes == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("exchange.outcome", outcome)}
	if kind != "" {
		attrs = append(attrs, attribute.String("exchange.failure_kind", kind))
	}

	exchangeOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func recordDuration(ctx context.Context, seconds float64) {
	if exchangeDurations == nil {
		return
	}

	exchangeDurations.Record(ctx, seconds)
}
