package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
)

func newMemoryDependencies(t *testing.T, mutate func(*Config)) *Dependencies {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })
	return deps
}

func TestNewDependencies_Memory(t *testing.T) {
	deps := newMemoryDependencies(t, nil)

	assert.NotNil(t, deps.Orders)
	assert.NotNil(t, deps.Mailer)
	assert.Nil(t, deps.Admin, "admin is disabled without a secret")
	assert.Nil(t, deps.Producer)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, deps.Limiter)

	resp := deps.Health.Run(context.Background())
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "storage")
}

func TestNewDependencies_AdminAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	deps := newMemoryDependencies(t, func(c *Config) {
		c.AdminJWTSecret = "test-secret"
		c.RedisAddr = mr.Addr()
	})

	require.NotNil(t, deps.Admin)
	assert.IsType(t, &ratelimit.RedisLimiter{}, deps.Limiter)

	resp := deps.Health.Run(context.Background())
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Equal(t, health.StatusHealthy, resp.Checks["redis"].Status)

	mr.Close()
	resp = deps.Health.Run(context.Background())
	assert.Equal(t, health.StatusDegraded, resp.Status, "redis is optional")
}

func TestNewAPIRouter_AdminDisabledWithoutSecret(t *testing.T) {
	deps := newMemoryDependencies(t, nil)
	router := newAPIRouter(DefaultConfig(), deps)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/create-order", strings.NewReader(`{"items":[]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartMetricsServer_Endpoints(t *testing.T) {
	deps := newMemoryDependencies(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startMetricsServer(ctx, "127.0.0.1:0", log.WithField("test", "metrics"), deps.Health)
	require.NotNil(t, srv)

	for path, want := range map[string]int{
		"/metrics": http.StatusOK,
		"/healthz": http.StatusOK,
		"/livez":   http.StatusOK,
		"/readyz":  http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}

	assert.Nil(t, startMetricsServer(ctx, "", log.WithField("test", "metrics"), deps.Health))
}
