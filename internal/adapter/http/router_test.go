package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBridges int

func (f fixedBridges) ConnectionCount() int { return int(f) }

func TestHealth(t *testing.T) {
	r := NewRouter(RouterConfig{Service: "test", Host: "ws", Bridges: fixedBridges(2)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, healthStatus{Status: "ok", Host: "ws", Bridges: 2}, got)
}

func TestHealthWithoutBridges(t *testing.T) {
	r := NewRouter(RouterConfig{Service: "test", Host: "nats"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.JSONEq(t, `{"status":"ok","host":"nats","bridges":0}`, rec.Body.String())
}

func TestBridgeRouteMounted(t *testing.T) {
	called := false
	r := NewRouter(RouterConfig{
		Service:    "test",
		Host:       "ws",
		BridgePath: "/bridge",
		Bridge: func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bridge", http.NoBody))

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBridgeRouteThrottled(t *testing.T) {
	r := NewRouter(RouterConfig{
		Service:    "test",
		Host:       "ws",
		BridgePath: "/ws",
		Bridge:     func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		Throttle: func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code, "only the bridge route is throttled")
}

func TestRequestIDHeaderPropagated(t *testing.T) {
	buf := captureLogs(t)
	r := NewRouter(RouterConfig{Service: "test", Host: "ws"})

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("X-Request-Id", "req-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}
