package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockAuthorizationServer is a configurable stand-in for the authorization
// service that exchanges credentials for tokens.
type MockAuthorizationServer struct {
	Server *httptest.Server

	mu            sync.Mutex
	token         string
	statusCode    int
	requestCount  int
	lastAuthValue string
	lastPath      string
}

// SetupMockAuthorizationServer starts a mock authorization service. By default
// it answers every request with 200 and the body "exchanged-token".
func SetupMockAuthorizationServer(t *testing.T) *MockAuthorizationServer {
	t.Helper()

	mock := &MockAuthorizationServer{
		token:      "exchanged-token",
		statusCode: http.StatusOK,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastAuthValue = r.Header.Get("Authorization")
		mock.lastPath = r.URL.EscapedPath()
		status, token := mock.statusCode, mock.token
		mock.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(token))
	}))

	t.Cleanup(mock.Server.Close)

	return mock
}

// Respond sets the status and token returned for subsequent requests.
func (m *MockAuthorizationServer) Respond(statusCode int, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statusCode = statusCode
	m.token = token
}

// RequestCount reports how many exchanges the server has handled.
func (m *MockAuthorizationServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requestCount
}

// LastRequest returns the Authorization header and escaped path of the most
// recent request.
func (m *MockAuthorizationServer) LastRequest() (authorization string, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastAuthValue, m.lastPath
}

// Close shuts down the mock server.
func (m *MockAuthorizationServer) Close() {
	m.Server.Close()
}

// MockUpstreamServer records the Authorization header of each request it
// receives, standing in for the API behind the gateway.
type MockUpstreamServer struct {
	Server *httptest.Server

	mu             sync.Mutex
	authorizations []string
	paths          []string
	statusCode     int
}

// SetupMockUpstreamServer starts an upstream that by default answers every
// request with 200 and the body "upstream".
func SetupMockUpstreamServer(t *testing.T) *MockUpstreamServer {
	t.Helper()

	mock := &MockUpstreamServer{statusCode: http.StatusOK}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.authorizations = append(mock.authorizations, r.Header.Get("Authorization"))
		mock.paths = append(mock.paths, r.URL.EscapedPath())
		status := mock.statusCode
		mock.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream"))
	}))

	t.Cleanup(mock.Server.Close)

	return mock
}

// Authorizations returns the Authorization header values received so far, in
// order of arrival.
func (m *MockUpstreamServer) Authorizations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.authorizations...)
}

// Paths returns the escaped request paths received so far, in order of
// arrival.
func (m *MockUpstreamServer) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.paths...)
}

// RespondStatus sets the status returned for subsequent requests.
func (m *MockUpstreamServer) RespondStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statusCode = statusCode
}

// Close shuts down the mock server.
func (m *MockUpstreamServer) Close() {
	m.Server.Close()
}
