package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chinmina/chinmina-gateway/internal/audit"
	"github.com/chinmina/chinmina-gateway/internal/testhelpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {

	t.Run("captures request info and configures context", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		testAgent := "kettle/1.0"
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := audit.Log(r.Context())
			assert.Equal(t, testAgent, entry.UserAgent)
			assert.Equal(t, "/foo", entry.Path)

			w.WriteHeader(http.StatusTeapot)
		})

		middleware := audit.Middleware()(handler)

		req, w := requestSetup()
		req.Header.Set("User-Agent", testAgent)

		middleware.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTeapot, w.Result().StatusCode)
	})

	t.Run("captures status code", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var capturedContext context.Context
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedContext = r.Context()
			w.WriteHeader(http.StatusTeapot)
		})

		req, w := requestSetup()

		audit.Middleware()(handler).ServeHTTP(w, req)

		entry := audit.Log(capturedContext)

		assert.Equal(t, http.StatusTeapot, entry.Status)
	})

	t.Run("implicit OK recorded", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var capturedContext context.Context
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedContext = r.Context()
			_, _ = w.Write([]byte("hello"))
		})

		req, w := requestSetup()

		audit.Middleware()(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, audit.Log(capturedContext).Status)
	})

	t.Run("log written", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		auditWritten := false

		ctx := withLogHook(
			context.Background(),
			zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
				if level == audit.Level {
					auditWritten = true
				}
			}),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		req, w := requestSetup()

		audit.Middleware()(handler).ServeHTTP(w, req.WithContext(ctx))

		assert.True(t, auditWritten, "audit log entry should be written")
	})

	t.Run("log written on panic", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		auditWritten := false

		ctx := withLogHook(
			context.Background(),
			zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
				if level == audit.Level {
					auditWritten = true
				}
			}),
		)

		var entry *audit.Entry

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, entry = audit.Context(r.Context())
			entry.Error = "failure pre-panic"
			panic("not a teapot")
		})

		middleware := audit.Middleware()(handler)

		req, w := requestSetup()

		assert.PanicsWithValue(t, "not a teapot", func() {
			middleware.ServeHTTP(w, req.WithContext(ctx))
		})

		assert.Equal(t, "failure pre-panic; panic: not a teapot", entry.Error)
		assert.True(t, auditWritten, "audit log entry should be written")
	})
}

func TestAuditing(t *testing.T) {
	testhelpers.SetupLogger(t)

	ctx := context.Background()
	r, _ := requestSetup()

	_, e := audit.Context(ctx)
	e.Begin(r)
	e.End(ctx)()

	assert.NotEmpty(t, e.SourceIP)
	e.SourceIP = "" // clear IP as it will change between tests

	assert.Equal(t, &audit.Entry{Method: "GET", Path: "/foo", UserAgent: "kettle/1.0", Status: 200}, e)
}

func TestLog_DetachedWithoutContext(t *testing.T) {
	e := audit.Log(context.Background())
	require.NotNil(t, e)

	e.Error = "not shared"
	assert.Empty(t, audit.Log(context.Background()).Error)
}

func TestEntrySerialization(t *testing.T) {
	serialize := func(t *testing.T, entry audit.Entry) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		logger.Log().EmbedObject(&entry).Send()

		var result map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		return result
	}

	t.Run("request fields nested", func(t *testing.T) {
		result := serialize(t, audit.Entry{
			Method:    "GET",
			Path:      "/orders/7",
			Status:    200,
			SourceIP:  "10.0.0.1",
			UserAgent: "test/1.0",
		})

		request, ok := result["request"].(map[string]any)
		require.True(t, ok, "expected 'request' dict in log output")
		assert.Equal(t, "GET", request["method"])
		assert.Equal(t, "/orders/7", request["path"])
		assert.Equal(t, float64(200), request["status"])
		assert.Equal(t, "10.0.0.1", request["sourceIP"])
		assert.Equal(t, "test/1.0", request["userAgent"])
	})

	t.Run("exchange omitted when not attempted", func(t *testing.T) {
		result := serialize(t, audit.Entry{Method: "GET"})
		assert.Contains(t, result, "request")
		assert.NotContains(t, result, "exchange")
		assert.NotContains(t, result, "error")
	})

	t.Run("exchange cache hit", func(t *testing.T) {
		result := serialize(t, audit.Entry{
			Exchange: audit.ExchangeEntry{Attempted: true, CacheHit: true},
		})

		exchange, ok := result["exchange"].(map[string]any)
		require.True(t, ok, "expected 'exchange' dict in log output")
		assert.Equal(t, true, exchange["cacheHit"])
		assert.NotContains(t, exchange, "status")
		assert.NotContains(t, exchange, "failureKind")
	})

	t.Run("exchange failure", func(t *testing.T) {
		result := serialize(t, audit.Entry{
			Exchange: audit.ExchangeEntry{Attempted: true, Status: 403, FailureKind: "forbidden"},
			Error:    "token exchange failed",
		})

		exchange, ok := result["exchange"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, false, exchange["cacheHit"])
		assert.Equal(t, float64(403), exchange["status"])
		assert.Equal(t, "forbidden", exchange["failureKind"])
		assert.Equal(t, "token exchange failed", result["error"])
	})
}

func requestSetup() (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo", nil)
	req.Header.Set("User-Agent", "kettle/1.0")

	w := httptest.NewRecorder()

	return req, w
}

func withLogHook(ctx context.Context, hook zerolog.HookFunc) context.Context {
	testLog := log.Logger.With().Logger().Hook(hook)
	return testLog.WithContext(ctx)
}
