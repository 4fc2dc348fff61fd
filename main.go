package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/chinmina/chinmina-gateway/internal/audit"
	"github.com/chinmina/chinmina-gateway/internal/cache"
	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/chinmina/chinmina-gateway/internal/exchange"
	"github.com/chinmina/chinmina-gateway/internal/observe"
	"github.com/chinmina/chinmina-gateway/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

func configureServerRoutes(cfg config.Config, tokenCache cache.TokenCache[string], transport http.RoundTripper) (http.Handler, error) {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	upstream, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("upstream configuration failed: %w", err)
	}

	// configure middleware
	auditor := audit.Middleware()

	exchangeClient := exchange.NewHTTPClient(cfg.Exchange, &http.Client{Transport: transport})
	exchanger := exchange.NewExchanger(tokenCache, exchangeClient.Exchange)
	credentialExchange := exchange.Middleware(exchanger, exchange.WithErrorHandler(handleExchangeError))

	// Request bodies are passed through to the upstream, so the limit is more
	// generous than for a token-only API.
	requestLimitBytes := int64(10 << 20) // 10 MB
	requestLimiter := maxRequestSize(requestLimitBytes)

	exchangedRouteMiddleware := alice.New(requestLimiter, auditor, credentialExchange)
	standardRouteMiddleware := alice.New(requestLimiter)

	// everything not otherwise routed is exchanged and proxied upstream
	mux.Handle("/", exchangedRouteMiddleware.Then(handleProxy(upstream, transport)))

	// healthchecks are not included in telemetry, exchange or proxying
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()
	hooks := &server.ShutdownHooks{}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	hooks.AddContext("telemetry", shutdownTelemetry)

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	// the cache lives for the lifetime of the process and is shared by all
	// requests
	tokenCache, err := cache.NewFromConfig[string](cfg.Cache)
	if err != nil {
		return fmt.Errorf("token cache configuration failed: %w", err)
	}
	hooks.AddCloser("token-cache", tokenCache)
	hooks.AddContext("token-cache-stats", func(context.Context) error {
		logCacheStats(tokenCache)
		return nil
	})

	// setup routing and dependencies
	handler, err := configureServerRoutes(cfg, tokenCache, http.DefaultTransport)
	if err != nil {
		return fmt.Errorf("server routing configuration failed: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("server listen failed: %w", err)
	}

	// start the server
	srv := &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	err = server.Serve(ctx, srv, listener, shutdownTimeout, hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}

func logCacheStats(tokenCache cache.TokenCache[string]) {
	instrumented, ok := tokenCache.(*cache.Instrumented[string])
	if !ok {
		return
	}

	s, ok := instrumented.Stats()
	if !ok {
		return
	}

	log.Info().
		Uint64("hits", s.Hits).
		Uint64("misses", s.Misses).
		Uint64("evictions", s.Evictions).
		Msg("token cache statistics")
}
