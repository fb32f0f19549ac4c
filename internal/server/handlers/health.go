package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/sync/errgroup"
)

// Check results reported per registered checker.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
	statusStarting  = "starting"
)

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthManager runs registered checkers for the health endpoints.
// Startup probes fail until MarkStarted is called.
type HealthManager struct {
	mu        sync.RWMutex
	checkers  map[string]HealthChecker
	version   string
	started   atomic.Bool
	startedAt time.Time
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker adds or replaces the checker stored under name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// MarkStarted flips the startup probe to passing.
func (hm *HealthManager) MarkStarted() {
	hm.mu.Lock()
	hm.startedAt = time.Now()
	hm.mu.Unlock()
	hm.started.Store(true)
}

func (hm *HealthManager) snapshot() ([]string, map[string]HealthChecker) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checkers))
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		names = append(names, name)
		checkers[name] = checker
	}
	sort.Strings(names)
	return names, checkers
}

// runHealthChecks executes every checker concurrently under ctx.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	names, checkers := hm.snapshot()
	results := make([]string, len(names))

	var g errgroup.Group
	for i, name := range names {
		checker := checkers[name]
		g.Go(func() error {
			results[i] = classifyCheck(ctx, checker.CheckHealth(ctx))
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
	}
	return checks
}

func classifyCheck(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return statusHealthy
	case stderrors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return statusTimeout
	default:
		return statusUnhealthy
	}
}

// determineOverallStatus folds per-check results; timeouts only degrade.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := statusHealthy
	for _, status := range checks {
		switch status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusDegraded, statusTimeout:
			overall = statusDegraded
		}
	}
	return overall
}

// HealthHandler handles aggregate health check requests
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)

	if status == statusUnhealthy {
		hm.fail(w, r, "", "aggregate health check failed", status, checks)
		return
	}

	resp := HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if hm.started.Load() {
		hm.mu.RLock()
		resp.Uptime = time.Since(hm.startedAt).Round(time.Second).String()
		hm.mu.RUnlock()
	}
	writeJSON(w, http.StatusOK, resp)
}

// LivenessHandler answers as long as the process can serve HTTP.
// Dependencies are left to the readiness probe so a storage outage
// does not get the process restarted.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
	})
}

// ReadinessHandler reports whether tracker storage can serve traffic.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", "readiness probe failed", 5*time.Second)
}

// StartupHandler fails until MarkStarted, then behaves like readiness.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	if !hm.started.Load() {
		hm.fail(w, r, "startup", "startup probe failed", statusStarting, nil)
		return
	}
	hm.probe(w, r, "startup", "startup probe failed", 3*time.Second)
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name, failure string, timeout time.Duration) {
	checkCtx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)
	if status == statusUnhealthy {
		hm.fail(w, r, name, failure, status, checks)
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

func (hm *HealthManager) fail(w http.ResponseWriter, r *http.Request, probe, message, status string, checks map[string]string) {
	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message).
		WithDetails(healthDetails(probe, status, checks))

	contextData := map[string]interface{}{"status": status}
	if probe != "" {
		contextData["probe"] = probe
	}
	if failing := failingChecks(checks); len(failing) > 0 {
		contextData["unhealthy_checks"] = failing
	}
	if updated, err := envelope.WithContext(contextData); err == nil {
		envelope = updated
	}

	respondWithError(w, r, envelope)
}

func healthDetails(probe, status string, checks map[string]string) map[string]interface{} {
	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	return details
}

func failingChecks(checks map[string]string) []string {
	var failing []string
	for name, result := range checks {
		if result != statusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return failing
}
