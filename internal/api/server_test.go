package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claralabs/clara/internal/session"
)

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{Sessions: &stubResolver{}})
	assert.ErrorContains(t, err, "turn runner")

	_, err = NewServer(ServerConfig{Runner: &stubRunner{}})
	assert.ErrorContains(t, err, "session resolver")
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadyWithoutPool(t *testing.T) {
	srv := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgentEndpointRequiresPost(t *testing.T) {
	srv := newTestServer(t, &stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/agent", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Runner:    &stubRunner{},
		Sessions:  &stubResolver{err: session.ErrNotFound},
		IsDev:     true,
		RateBurst: 1,
	})
	require.NoError(t, err)

	first := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"query":"hola"}`))
	first.RemoteAddr = "198.51.100.7:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"query":"hola"}`))
	second.RemoteAddr = "198.51.100.7:1235"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitIsPerIP(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Runner:    &stubRunner{},
		Sessions:  &stubResolver{err: session.ErrNotFound},
		IsDev:     true,
		RateBurst: 1,
	})
	require.NoError(t, err)

	for i, addr := range []string{"203.0.113.1:1", "203.0.113.2:1"} {
		req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"query":"hola"}`))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	req.Header.Set("X-Real-IP", "203.0.113.9")

	assert.Equal(t, "192.0.2.10", clientIP(req, false))
	assert.Equal(t, "203.0.113.9", clientIP(req, true))

	req.Header.Del("X-Real-IP")
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req, true))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "192.0.2.10", clientIP(req, true))
}
