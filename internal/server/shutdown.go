package server

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// ShutdownHooks collects the cleanup steps for resources created during
// startup. Hooks run in reverse registration order, so a resource is released
// before anything it was built on top of. A failing hook does not prevent the
// remaining hooks from running.
type ShutdownHooks struct {
	hooks []hook
}

// AddContext registers a hook that receives the shutdown context, which may
// carry a deadline. Nil hooks are ignored with a warning logged.
func (s *ShutdownHooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// AddCloser registers a resource to be closed at shutdown.
func (s *ShutdownHooks) AddCloser(name string, closer io.Closer) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	s.AddContext(name, func(context.Context) error {
		return closer.Close()
	})
}

// Execute runs the registered hooks, latest first, logging the outcome of
// each. The returned error joins every hook failure.
func (s *ShutdownHooks) Execute(ctx context.Context) error {
	l := log.Ctx(ctx)

	var errs []error
	for i := len(s.hooks) - 1; i >= 0; i-- {
		h := s.hooks[i]
		hookLog := l.With().Str("hook", h.name).Logger()

		hookLog.Info().Msg("shutdown started")
		if err := h.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, err)
		} else {
			hookLog.Info().Msg("shutdown complete")
		}
	}

	return errors.Join(errs...)
}
