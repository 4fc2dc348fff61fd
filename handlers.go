package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/chinmina/chinmina-gateway/internal/audit"
	"github.com/chinmina/chinmina-gateway/internal/exchange"
	"github.com/rs/zerolog/log"
)

// handleProxy forwards requests to the upstream API. By the time a request
// reaches here its credential has already been exchanged.
func handleProxy(upstream *url.URL, transport http.RoundTripper) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(upstream)
			r.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			audit.Log(r.Context()).Error = "upstream request failed"

			writeJSONError(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway))
		},
	}
}

// handleExchangeError responds to a request whose credential could not be
// exchanged. Only the status and a generic message are returned to the
// client; the cause is logged by the exchange middleware.
func handleExchangeError(w http.ResponseWriter, r *http.Request, err error) {
	defer drainRequestBody(r)

	status, message := exchange.ErrorStatus(err)
	writeJSONError(w, status, message)
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5MB max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
