package handlers

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

	"github.com/postforge/postforge/internal/kv"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(context.Context) error { return s.err }

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

type slowChecker struct{}

func (slowChecker) CheckHealth(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func callHealth(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthHandlerReportsChecks(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("tracker_storage", StorageChecker{Storage: kv.NewMemory()})
	manager.MarkStarted()

	rec := callHealth(manager.HealthHandler, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Checks["tracker_storage"])
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealthHandlerFailsWithEnvelope(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", stubChecker{err: errors.New("database is closed")})
	manager.RegisterChecker("telemetry", stubChecker{})

	rec := callHealth(manager.HealthHandler, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]any)
	require.True(t, ok, "checks missing from details: %v", resp.Error.Details)
	assert.Equal(t, "unhealthy", checks["store"])
	assert.Equal(t, "healthy", checks["telemetry"])
	assert.Equal(t, []any{"store"}, resp.Error.Details["unhealthy_checks"])
}

func TestRunHealthChecksReportsTimeout(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("slow", slowChecker{})
	manager.RegisterChecker("ok", stubChecker{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	checks := manager.runHealthChecks(ctx)
	assert.Equal(t, map[string]string{"slow": "timeout", "ok": "healthy"}, checks)
	assert.Equal(t, "degraded", manager.determineOverallStatus(checks))
}

func TestDetermineOverallStatus(t *testing.T) {
	manager := NewHealthManager("dev")

	assert.Equal(t, "healthy", manager.determineOverallStatus(nil))
	assert.Equal(t, "degraded", manager.determineOverallStatus(map[string]string{"a": "healthy", "b": "timeout"}))
	assert.Equal(t, "unhealthy", manager.determineOverallStatus(map[string]string{"a": "timeout", "b": "unhealthy"}))
}

func TestStorageCheckerRoundTrip(t *testing.T) {
	store := kv.NewMemory()

	require.NoError(t, StorageChecker{Storage: store}.CheckHealth(context.Background()))
	assert.Empty(t, store.Keys(""), "probe key should be removed")

	assert.Error(t, StorageChecker{}.CheckHealth(context.Background()))
}

func TestReadinessHandlerReportsUnhealthyPinger(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", PingChecker{Target: stubPinger{err: errors.New("closed")}})

	rec := callHealth(manager.ReadinessHandler, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartupHandlerWaitsForMarkStarted(t *testing.T) {
	manager := NewHealthManager("dev")

	assert.Equal(t, http.StatusServiceUnavailable, callHealth(manager.StartupHandler, "/health/startup").Code)

	manager.MarkStarted()
	assert.Equal(t, http.StatusOK, callHealth(manager.StartupHandler, "/health/startup").Code)
}

func TestLivenessIgnoresFailingDependencies(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

	assert.Equal(t, http.StatusOK, callHealth(manager.LivenessHandler, "/health/live").Code)
}
