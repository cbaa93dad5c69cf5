package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	}
	return rec.Code, body
}

func TestNotReady(t *testing.T) {
	s := New(0, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		code, body := get(t, s.Handler(), path)
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
		assert.Equal(t, "not_ready", body["status"], path)
	}
}

func TestReady(t *testing.T) {
	s := New(0, false)
	s.SetReady(true)
	s.AddCheck("builder", func(context.Context) error { return nil })

	code, body := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReady_FailingCheck(t *testing.T) {
	s := New(0, false)
	s.SetReady(true)
	s.AddCheck("builder", func(context.Context) error { return nil })
	s.AddCheck("piper", func(context.Context) error { return errors.New("connection refused") })

	code, body := get(t, s.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"piper": "connection refused"}, body["checks"])

	// Liveness ignores checks.
	code, _ = get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	code, _ := get(t, New(0, true).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, New(0, false).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(0, true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	s.SetReady(true)
	cancel()
	require.NoError(t, <-done)
}
