package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/server/handlers"
	"github.com/postforge/postforge/internal/tracker"
)

func newTestServer(t *testing.T) (*Server, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New(kv.NewMemory(), tracker.WithNamespace("test"))
	t.Cleanup(tr.Close)
	return New("127.0.0.1", 0, Options{Tracker: tr, PollInterval: 10 * time.Millisecond}), tr
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
	if body.Error.RequestID == "" {
		t.Fatal("expected request id on error response")
	}
}

func TestServerRoutesTrackerOperations(t *testing.T) {
	srv, tr := newTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/limits/x_api", strings.NewReader(`{"duration_ms":60000}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, tr.IsLimited(context.Background(), "x_api").Limited)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/limits/x_api", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/limits/x_api", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, tr.IsLimited(context.Background(), "x_api").Limited)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/credentials/x_auth", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerHealthUsesRegisteredCheckers(t *testing.T) {
	health := handlers.NewHealthManager("1.0.0")
	health.RegisterChecker("tracker", handlers.StorageChecker{Storage: kv.NewMemory()})
	srv := New("127.0.0.1", 0, Options{Health: health})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "healthy", resp.Checks["tracker"])
}

func TestServerStreamsCountdownOverHTTP(t *testing.T) {
	srv, tr := newTestServer(t)
	require.NoError(t, tr.RecordLimit(context.Background(), "x_api", 50*time.Millisecond))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		require.NoError(t, <-serveErr)
	})

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/limits/x_api/countdown?interval_ms=10")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "event: tick")
	require.Contains(t, string(body), "event: expired")
}
