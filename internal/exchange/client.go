package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/rs/zerolog/log"
)

// ExchangeFunc converts a credential presented on a path into a downstream
// token. Failures reported by the authorization service are returned as
// *FailureError.
type ExchangeFunc func(ctx context.Context, credential, path string) (string, error)

// HTTPClient exchanges credentials by calling the authorization service over
// HTTP: a GET to the base URL with the request path appended, carrying the
// original credential. A successful response body is the token.
type HTTPClient struct {
	baseURL       string
	client        *http.Client
	timeout       time.Duration
	maxTokenBytes int64
}

// NewHTTPClient creates a client for the configured authorization service. A
// nil httpClient uses http.DefaultClient, which carries the process-wide
// instrumented transport.
func NewHTTPClient(cfg config.ExchangeConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:       strings.TrimSuffix(cfg.AuthorizationURL, "/"),
		client:        httpClient,
		timeout:       cfg.RequestTimeout,
		maxTokenBytes: cfg.MaxTokenBytes,
	}
}

// Exchange satisfies ExchangeFunc.
func (c *HTTPClient) Exchange(ctx context.Context, credential, path string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("could not create exchange request: %w", err)
	}
	req.Header.Set("Authorization", credential)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ServiceError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxTokenBytes))

		log.Ctx(ctx).Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("authorization service refused exchange")

		return "", FailureForStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxTokenBytes+1))
	if err != nil {
		return "", ServiceError{Cause: fmt.Errorf("reading token: %w", err)}
	}

	if int64(len(body)) > c.maxTokenBytes {
		return "", ServiceError{Cause: fmt.Errorf("token exceeds %d bytes", c.maxTokenBytes)}
	}

	return string(body), nil
}
