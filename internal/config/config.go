package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Exchange ExchangeConfig
	Cache    CacheConfig
	Observe  ObserveConfig
	Server   ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`

	// UpstreamURL is the API that requests are proxied to once the credential
	// has been exchanged.
	UpstreamURL string `env:"UPSTREAM_URL, required"`
}

// ExchangeConfig specifies how credentials are exchanged with the
// authorization service.
type ExchangeConfig struct {
	// AuthorizationURL is the base URL of the authorization service. The path
	// of the inbound request is appended to it.
	AuthorizationURL string `env:"EXCHANGE_AUTHORIZATION_URL, required"`

	// RequestTimeout bounds a single exchange call. Calls shared by concurrent
	// requests are not cancelled with any one request, so this is their only
	// bound.
	RequestTimeout time.Duration `env:"EXCHANGE_REQUEST_TIMEOUT, default=10s"`

	// MaxTokenBytes limits how much of the authorization service response body
	// is read as the token.
	MaxTokenBytes int64 `env:"EXCHANGE_MAX_TOKEN_BYTES, default=65536"`
}

// CacheConfig specifies cache configuration for exchanged tokens.
type CacheConfig struct {
	// SlidingExpiration is the idle window after which an unused token is
	// evicted. Every read extends the entry's lifetime by this amount. Zero
	// disables caching entirely.
	SlidingExpiration time.Duration `env:"CACHE_SLIDING_EXPIRATION, default=5m"`

	// MaxSize caps the number of cached tokens.
	MaxSize int `env:"CACHE_MAX_SIZE, default=10000"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=chinmina-gateway"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Exchange.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid exchange configuration: %w", err)
	}

	err = cfg.Cache.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	err = cfg.Server.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid server configuration: %w", err)
	}

	err = cfg.Observe.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid observe configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the exchange configuration is usable.
func (c *ExchangeConfig) Validate() error {
	if err := requireAbsoluteURL(c.AuthorizationURL); err != nil {
		return fmt.Errorf("EXCHANGE_AUTHORIZATION_URL: %w", err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_REQUEST_TIMEOUT must be positive")
	}

	if c.MaxTokenBytes <= 0 {
		return fmt.Errorf("EXCHANGE_MAX_TOKEN_BYTES must be positive")
	}

	return nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.SlidingExpiration < 0 {
		return fmt.Errorf("CACHE_SLIDING_EXPIRATION must not be negative")
	}

	// size is irrelevant when caching is disabled
	if c.SlidingExpiration > 0 && c.MaxSize <= 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must be positive when caching is enabled")
	}

	return nil
}

// Validate checks that the server configuration is valid.
func (c *ServerConfig) Validate() error {
	if err := requireAbsoluteURL(c.UpstreamURL); err != nil {
		return fmt.Errorf("UPSTREAM_URL: %w", err)
	}

	return nil
}

// Validate checks the exporter type is one that can be configured.
func (c *ObserveConfig) Validate() error {
	switch c.Type {
	case "grpc", "stdout":
		return nil
	default:
		return fmt.Errorf("invalid OBSERVE_TYPE %q: must be either \"grpc\" or \"stdout\"", c.Type)
	}
}

func requireAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("URL must be absolute: %s", raw)
	}

	return nil
}
