package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("EXCHANGE_AUTHORIZATION_URL", "https://authz.example.com/api/authorize")
	t.Setenv("UPSTREAM_URL", "http://upstream.internal:8081")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExchangeConfig{
		AuthorizationURL: "https://authz.example.com/api/authorize",
		RequestTimeout:   10 * time.Second,
		MaxTokenBytes:    65536,
	}, cfg.Exchange)
	assert.Equal(t, CacheConfig{
		SlidingExpiration: 5 * time.Minute,
		MaxSize:           10_000,
	}, cfg.Cache)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://upstream.internal:8081", cfg.Server.UpstreamURL)
	assert.False(t, cfg.Observe.Enabled)
	assert.Equal(t, "chinmina-gateway", cfg.Observe.ServiceName)
}

func TestLoad_CacheDisabled(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_SLIDING_EXPIRATION", "0s")
	t.Setenv("CACHE_MAX_SIZE", "0")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.Cache.SlidingExpiration)
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"UPSTREAM_URL": "http://upstream.internal",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXCHANGE_AUTHORIZATION_URL")
}

func TestLoad_Invalid(t *testing.T) {
	base := map[string]string{
		"EXCHANGE_AUTHORIZATION_URL": "https://authz.example.com",
		"UPSTREAM_URL":               "http://upstream.internal",
	}

	cases := []struct {
		name     string
		override map[string]string
		expected string
	}{
		{
			name:     "relative authorization URL",
			override: map[string]string{"EXCHANGE_AUTHORIZATION_URL": "/authorize"},
			expected: "invalid exchange configuration",
		},
		{
			name:     "negative timeout",
			override: map[string]string{"EXCHANGE_REQUEST_TIMEOUT": "-1s"},
			expected: "EXCHANGE_REQUEST_TIMEOUT",
		},
		{
			name:     "zero timeout",
			override: map[string]string{"EXCHANGE_REQUEST_TIMEOUT": "0s"},
			expected: "EXCHANGE_REQUEST_TIMEOUT",
		},
		{
			name:     "zero token size",
			override: map[string]string{"EXCHANGE_MAX_TOKEN_BYTES": "0"},
			expected: "EXCHANGE_MAX_TOKEN_BYTES",
		},
		{
			name:     "negative sliding expiration",
			override: map[string]string{"CACHE_SLIDING_EXPIRATION": "-5m"},
			expected: "invalid cache configuration",
		},
		{
			name:     "zero size with caching enabled",
			override: map[string]string{"CACHE_MAX_SIZE": "0"},
			expected: "CACHE_MAX_SIZE",
		},
		{
			name:     "relative upstream",
			override: map[string]string{"UPSTREAM_URL": "upstream"},
			expected: "invalid server configuration",
		},
		{
			name:     "unknown exporter",
			override: map[string]string{"OBSERVE_TYPE": "carrier-pigeon"},
			expected: "OBSERVE_TYPE",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			for k, v := range tc.override {
				env[k] = v
			}

			_, err := load(context.Background(), envconfig.MapLookuper(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expected)
		})
	}
}
