package exchange

import (
	"errors"
	"net/http"

	"github.com/chinmina/chinmina-gateway/internal/audit"
	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog/log"
)

// ErrorHandler writes the response for a request whose exchange failed.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareOptions struct {
	errorHandler ErrorHandler
}

type Option func(*middlewareOptions)

// WithErrorHandler replaces the handler invoked when an exchange fails.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *middlewareOptions) {
		o.errorHandler = h
	}
}

// Middleware returns HTTP middleware that replaces the request's credential
// with the token it exchanges for.
//
// Requests without an Authorization header are passed on untouched. When the
// exchange succeeds, the Authorization header is set to "Bearer <token>" and
// the request is passed on; if the next handler then answers 401 the cached
// token is discarded. When the exchange fails, the error handler responds and
// the next handler is not called; the request is not modified.
func Middleware(exchanger *Exchanger, options ...Option) func(http.Handler) http.Handler {
	opts := middlewareOptions{
		errorHandler: DefaultErrorHandler,
	}
	for _, o := range options {
		o(&opts)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			credential := r.Header.Get("Authorization")
			if credential == "" {
				recordOutcome(ctx, outcomeSkipped, "")
				next.ServeHTTP(w, r)
				return
			}

			// the escaped form is what the upstream receives
			path := r.URL.EscapedPath()

			entry := audit.Log(ctx)
			entry.Exchange.Attempted = true

			result, err := exchanger.Exchange(ctx, credential, path)
			if err != nil {
				var failure *FailureError
				if errors.As(err, &failure) {
					entry.Exchange.Status = failure.StatusCode
					entry.Exchange.FailureKind = failure.Kind.String()
				}
				entry.Error = err.Error()

				log.Ctx(ctx).Info().Err(err).Str("path", path).Msg("credential exchange failed")

				opts.errorHandler(w, r, err)
				return
			}

			entry.Exchange.CacheHit = result.CacheHit

			// an empty token leaves the request as it arrived
			if result.Token == "" {
				next.ServeHTTP(w, r)
				return
			}

			r.Header.Set("Authorization", "Bearer "+result.Token)

			// An upstream that refuses the exchanged token makes the cached copy
			// useless: drop it so the next request exchanges again.
			status := 0
			wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
				WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						if status == 0 {
							status = code
						}
						next(code)
					}
				},
			})

			next.ServeHTTP(wrapped, r)

			if status == http.StatusUnauthorized {
				if err := exchanger.Invalidate(ctx, credential, path); err != nil {
					log.Ctx(ctx).Warn().Err(err).Msg("token cache invalidation failed")
				} else {
					log.Ctx(ctx).Debug().Str("path", path).Msg("upstream refused exchanged token; cached token discarded")
				}
			}
		})
	}
}

// DefaultErrorHandler responds with the status the error reports, or 500 for
// errors that carry no status. The body never includes error details.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status, message := ErrorStatus(err)
	http.Error(w, message, status)
}
