package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chinmina/chinmina-gateway/internal/cache"
	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/chinmina/chinmina-gateway/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// GatewayTestHarness runs the full route configuration against a mock
// authorization service and a mock upstream.
type GatewayTestHarness struct {
	t             *testing.T
	Server        *httptest.Server
	Authorization *testhelpers.MockAuthorizationServer
	Upstream      *testhelpers.MockUpstreamServer
}

// GatewayTestHarnessOption adjusts the configuration before the gateway is
// started.
type GatewayTestHarnessOption func(*config.Config)

// WithSlidingExpiration sets the token cache idle window.
func WithSlidingExpiration(window time.Duration) GatewayTestHarnessOption {
	return func(cfg *config.Config) {
		cfg.Cache.SlidingExpiration = window
	}
}

func NewGatewayTestHarness(t *testing.T, options ...GatewayTestHarnessOption) *GatewayTestHarness {
	t.Helper()
	testhelpers.SetupLogger(t)

	harness := &GatewayTestHarness{
		t:             t,
		Authorization: testhelpers.SetupMockAuthorizationServer(t),
		Upstream:      testhelpers.SetupMockUpstreamServer(t),
	}

	cfg := config.Config{
		Exchange: config.ExchangeConfig{
			AuthorizationURL: harness.Authorization.Server.URL + "/authorize",
			RequestTimeout:   5 * time.Second,
			MaxTokenBytes:    4096,
		},
		Cache: config.CacheConfig{
			SlidingExpiration: time.Minute,
			MaxSize:           100,
		},
		Observe: config.ObserveConfig{
			Enabled: false,
		},
		Server: config.ServerConfig{
			UpstreamURL: harness.Upstream.Server.URL,
		},
	}

	for _, opt := range options {
		opt(&cfg)
	}

	tokenCache, err := cache.NewFromConfig[string](cfg.Cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokenCache.Close() })

	handler, err := configureServerRoutes(cfg, tokenCache, http.DefaultTransport)
	require.NoError(t, err)

	harness.Server = httptest.NewServer(handler)
	t.Cleanup(harness.Server.Close)

	return harness
}

// Get issues a GET through the gateway, returning the status and body.
func (h *GatewayTestHarness) Get(path string, authorization string) (int, string) {
	h.t.Helper()

	req, err := http.NewRequest(http.MethodGet, h.Server.URL+path, nil)
	require.NoError(h.t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	return resp.StatusCode, string(body)
}
