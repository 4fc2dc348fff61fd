package observe

import (
	"context"
	"net/http"
	"testing"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestConfigure_Disabled(t *testing.T) {
	shutdown, err := Configure(context.Background(), config.ObserveConfig{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_Stdout(t *testing.T) {
	shutdown, err := Configure(context.Background(), config.ObserveConfig{
		Enabled:                   true,
		MetricsEnabled:            true,
		Type:                      "stdout",
		ServiceName:               "test-service",
		SDKLogLevel:               "warn",
		TraceBatchTimeoutSeconds:  1,
		MetricReadIntervalSeconds: 60,
	})
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_UnknownType(t *testing.T) {
	_, err := Configure(context.Background(), config.ObserveConfig{
		Enabled:     true,
		Type:        "carrier-pigeon",
		SDKLogLevel: "info",
	})

	assert.ErrorContains(t, err, "unsupported exporter type")
}

func TestHTTPTransport(t *testing.T) {
	base := http.DefaultTransport

	t.Run("disabled returns wrapped", func(t *testing.T) {
		assert.Same(t, base, HTTPTransport(base, config.ObserveConfig{Enabled: false, HTTPTransportEnabled: true}))
	})

	t.Run("transport tracing disabled returns wrapped", func(t *testing.T) {
		assert.Same(t, base, HTTPTransport(base, config.ObserveConfig{Enabled: true, HTTPTransportEnabled: false}))
	})

	t.Run("enabled wraps", func(t *testing.T) {
		wrapped := HTTPTransport(base, config.ObserveConfig{
			Enabled:                    true,
			HTTPTransportEnabled:       true,
			HTTPConnectionTraceEnabled: true,
		})
		assert.IsType(t, &otelhttp.Transport{}, wrapped)
	})
}
