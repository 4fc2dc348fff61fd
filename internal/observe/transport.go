package observe

import (
	"context"
	"net/http"
	"net/http/httptrace"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPTransport wraps the transport with client instrumentation when telemetry
// and transport tracing are enabled, optionally adding connection-level
// (DNS, connect, TLS) spans.
func HTTPTransport(wrapped http.RoundTripper, cfg config.ObserveConfig) http.RoundTripper {
	if !cfg.Enabled || !cfg.HTTPTransportEnabled {
		return wrapped
	}

	options := []otelhttp.Option{}
	if cfg.HTTPConnectionTraceEnabled {
		options = append(options, otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}))
	}

	return otelhttp.NewTransport(wrapped, options...)
}
