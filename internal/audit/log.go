package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Level is the log level that audit entries are written at. It sits above
	// the standard levels so audit entries survive any level filtering.
	Level = zerolog.Level(20)
)

// Entry is an audit log entry for a single proxied request.
type Entry struct {
	Method    string
	Path      string
	Status    int
	SourceIP  string
	UserAgent string

	// Exchange records the outcome of the credential exchange. Left zero when no
	// exchange was attempted.
	Exchange ExchangeEntry

	Error string
}

// ExchangeEntry records what happened when the request's credential was
// exchanged. The credential and token are never recorded.
type ExchangeEntry struct {
	Attempted   bool
	CacheHit    bool
	Status      int
	FailureKind string
}

// MarshalZerologObject writes the entry as nested dictionaries. The exchange
// dictionary is only written when an exchange was attempted.
func (e *Entry) MarshalZerologObject(event *zerolog.Event) {
	event.Dict("request", zerolog.Dict().
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Str("sourceIP", e.SourceIP).
		Str("userAgent", e.UserAgent),
	)

	if e.Exchange.Attempted {
		exchange := NewOptionalEvent(nil).
			Bool("cacheHit", e.Exchange.CacheHit).
			Int("status", e.Exchange.Status).
			Str("failureKind", e.Exchange.FailureKind)
		exchange.Set(event, "exchange")
	}

	if e.Error != "" {
		event.Str("error", e.Error)
	}
}

// Begin records the request details available before it is handled.
func (e *Entry) Begin(r *http.Request) {
	e.Method = r.Method
	e.Path = r.URL.Path
	e.UserAgent = r.UserAgent()
	e.SourceIP = sourceIP(r)
}

// End returns a function that writes the entry to the log. It is intended to
// be deferred directly: a panic in the handler is recorded on the entry, the
// entry is written, and the panic is then resumed.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		if r := recover(); r != nil {
			if e.Error != "" {
				e.Error += "; "
			}
			e.Error += fmt.Sprintf("panic: %v", r)

			defer panic(r)
		}

		if e.Status == 0 {
			// net/http responds OK when nothing was explicitly written
			e.Status = http.StatusOK
		}

		log.Ctx(ctx).WithLevel(Level).EmbedObject(e).Msg("audit_event")
	}
}

type contextKey struct{}

// Context returns the audit entry for the context, creating and attaching one
// if it is not yet present.
func Context(ctx context.Context) (context.Context, *Entry) {
	if e, ok := ctx.Value(contextKey{}).(*Entry); ok {
		return ctx, e
	}

	e := &Entry{}
	return context.WithValue(ctx, contextKey{}, e), e
}

// Log returns the audit entry for the context. When the context carries no
// entry, a detached entry is returned so callers never need to nil-check.
func Log(ctx context.Context) *Entry {
	_, e := Context(ctx)
	return e
}

// Middleware attaches an audit entry to each request, records the response
// status, and writes the entry once the request has been handled.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())

			entry.Begin(r)
			defer entry.End(ctx)()

			wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
				WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						if entry.Status == 0 {
							entry.Status = code
						}
						next(code)
					}
				},
			})

			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
