package observe

import (
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Multiplexer interface {
	Handle(pattern string, handler http.Handler)
	http.Handler
}

// Mux registers every handler with OpenTelemetry HTTP instrumentation. Routes
// are named after their pattern without the method; the catch-all pattern is
// named "proxy" so that proxied requests share one operation.
type Mux struct {
	wrapped Multiplexer
	options []otelhttp.Option
}

func NewMux(wrapped Multiplexer, options ...otelhttp.Option) *Mux {
	return &Mux{
		wrapped: wrapped,
		options: options,
	}
}

func (mux *Mux) Handle(pattern string, handler http.Handler) {
	instrumented := otelhttp.NewHandler(
		handler,
		OperationName(pattern),
		mux.options...,
	)

	mux.wrapped.Handle(pattern, instrumented)
}

func (mux *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.wrapped.ServeHTTP(w, r)
}

// OperationName gives the telemetry operation name for a ServeMux pattern.
func OperationName(pattern string) string {
	route := TrimMethod(pattern)
	if route == "/" {
		return "proxy"
	}
	return route
}

var methods = []string{
	http.MethodConnect,
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
	http.MethodTrace,
}

// TrimMethod removes a leading HTTP method from a ServeMux pattern.
func TrimMethod(pattern string) string {
	method, route, hasMethod := strings.Cut(pattern, " ")
	if hasMethod && slices.Contains(methods, method) {
		return route
	}
	return pattern
}
