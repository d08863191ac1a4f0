package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() Pinger {
	return PingerFunc(func(context.Context) error { return nil })
}

func failing(msg string) Pinger {
	return PingerFunc(func(context.Context) error { return errors.New(msg) })
}

func serve(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("1.2.3")
	handler.RegisterChecker("store", NewPingChecker("store", ok()))

	rec, resp := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusHealthy, resp.Checks["store"].Status)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("1.2.3")
	handler.RegisterChecker("store", NewPingChecker("store", failing("connection refused")))
	handler.RegisterChecker("redis", NewOptionalChecker("redis", ok()))

	rec, resp := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["store"].Message)
}

func TestHealthHandler_OptionalFailureDegrades(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("store", NewPingChecker("store", ok()))
	handler.RegisterChecker("redis", NewOptionalChecker("redis", failing("i/o timeout")))

	rec, resp := serve(t, handler.ServeHTTP)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, resp.Status)

	ready := httptest.NewRecorder()
	handler.ReadinessHandler(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("store", NewPingChecker("store", failing("down")))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", rec.Body.String())
}

func TestRun_ChecksShareDeadline(t *testing.T) {
	handler := NewHandler("dev")
	handler.timeout = 20 * time.Millisecond
	handler.RegisterChecker("slow", NewPingChecker("slow", PingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	started := time.Now()
	resp := handler.Run(context.Background())

	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Message)
}
