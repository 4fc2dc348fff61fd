package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Serve runs the server on the listener until ctx is cancelled or the process
// receives SIGINT or SIGTERM. The server is then given shutdownTimeout to
// drain in-flight requests before the shutdown hooks run. The hooks also run
// when the server stops on its own.
func Serve(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, hooks *ShutdownHooks) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("server: listening")
		serverErr <- server.Serve(listener)
	}()

	shutdownContext := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("server terminated unexpectedly: %w", err)
		}

		// resources were still created, so they are released as for a
		// requested shutdown
		hookCtx, cancel := shutdownContext()
		defer cancel()

		return errors.Join(err, hooks.Execute(hookCtx))

	case <-ctx.Done():
		log.Info().Msg("server: shutdown requested")
	}

	shutdownCtx, cancel := shutdownContext()
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("server: graceful shutdown incomplete")
	}

	hookErr := hooks.Execute(shutdownCtx)

	log.Info().Msg("server: shutdown complete")

	return errors.Join(shutdownErr, hookErr)
}
