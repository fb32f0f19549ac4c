package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
)

func newTrackerRouter(t *testing.T) (http.Handler, *tracker.Tracker) {
	t.Helper()

	tr := tracker.New(kv.NewMemory(), tracker.WithNamespace("test"))
	t.Cleanup(tr.Close)

	h := &TrackerHandler{Tracker: tr, PollInterval: 10 * time.Millisecond, MaxCountdown: 5 * time.Second}
	r := chi.NewRouter()
	r.Get("/v1/limits/{key}", h.GetLimit)
	r.Put("/v1/limits/{key}", h.PutLimit)
	r.Delete("/v1/limits/{key}", h.DeleteLimit)
	r.Get("/v1/limits/{key}/countdown", h.Countdown)
	r.Put("/v1/credentials/{key}", h.PutCredential)
	r.Get("/v1/credentials/{key}", h.GetCredential)
	r.Delete("/v1/credentials/{key}", h.DeleteCredential)
	return r, tr
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error.Code
}

func TestLimitLifecycle(t *testing.T) {
	router, _ := newTrackerRouter(t)

	rec := serve(t, router, http.MethodPut, "/v1/limits/x_api", `{"duration_ms":900000}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, router, http.MethodGet, "/v1/limits/x_api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view output.LimitView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.True(t, view.Limited)
	require.Equal(t, "x_api", view.Key)
	require.Greater(t, view.RemainingMs, int64(899000))
	require.NotNil(t, view.ResetAt)

	rec = serve(t, router, http.MethodDelete, "/v1/limits/x_api", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, router, http.MethodGet, "/v1/limits/x_api", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.False(t, view.Limited)
	require.Zero(t, view.RemainingMs)
}

func TestPutLimitRejectsInvalidDuration(t *testing.T) {
	router, _ := newTrackerRouter(t)

	for _, body := range []string{`{"duration_ms":0}`, `{"duration_ms":-5}`, `{"seconds":3}`, ``, `{`} {
		rec := serve(t, router, http.MethodPut, "/v1/limits/x_api", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		require.Equal(t, "INVALID_INPUT", errorCode(t, rec))
	}
}

func TestCredentialLifecycle(t *testing.T) {
	router, tr := newTrackerRouter(t)

	rec := serve(t, router, http.MethodPut, "/v1/credentials/x_auth", `{"payload":{"user":"alice"},"ttl_ms":60000}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, router, http.MethodGet, "/v1/credentials/x_auth", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"key":"x_auth","payload":{"user":"alice"}}`, rec.Body.String())

	require.NoError(t, tr.RecordLimit(t.Context(), "x_auth", time.Minute))
	rec = serve(t, router, http.MethodDelete, "/v1/credentials/x_auth", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, tr.IsLimited(t.Context(), "x_auth").Limited)

	rec = serve(t, router, http.MethodGet, "/v1/credentials/x_auth", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestPutCredentialValidation(t *testing.T) {
	router, _ := newTrackerRouter(t)

	rec := serve(t, router, http.MethodPut, "/v1/credentials/x_auth", `{"ttl_ms":60000}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodPut, "/v1/credentials/x_auth", `{"payload":{"a":1},"ttl_ms":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestCountdownStreamsTicksThenExpired(t *testing.T) {
	router, tr := newTrackerRouter(t)
	require.NoError(t, tr.RecordLimit(t.Context(), "x_api", 60*time.Millisecond))

	rec := serve(t, router, http.MethodGet, "/v1/limits/x_api/countdown?interval_ms=10&max_ms=5000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, "event: tick\n")
	require.Equal(t, 1, strings.Count(body, "event: expired\n"))
	require.True(t, strings.HasSuffix(body, "event: expired\ndata: {\"remaining_ms\":0}\n\n"))
	require.NotContains(t, body, "event: stopped")
}

func TestCountdownStopsAtMaxDuration(t *testing.T) {
	router, tr := newTrackerRouter(t)
	require.NoError(t, tr.RecordLimit(t.Context(), "x_api", time.Hour))

	rec := serve(t, router, http.MethodGet, "/v1/limits/x_api/countdown?interval_ms=10&max_ms=30", "")

	body := rec.Body.String()
	require.Contains(t, body, "event: tick\n")
	require.NotContains(t, body, "event: expired")
	require.Contains(t, body, "event: stopped\n")
}

func TestCountdownRejectsBadParameters(t *testing.T) {
	router, _ := newTrackerRouter(t)

	rec := serve(t, router, http.MethodGet, "/v1/limits/x_api/countdown?interval_ms=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodGet, "/v1/limits/x_api/countdown?max_ms=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOversizedMillisecondsAreRejected(t *testing.T) {
	router, tr := newTrackerRouter(t)

	for _, body := range []string{`{"duration_ms":18446744073710}`, `{"duration_ms":10000000000000}`} {
		rec := serve(t, router, http.MethodPut, "/v1/limits/x_api", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Equal(t, "INVALID_INPUT", errorCode(t, rec))
	}
	require.False(t, tr.IsLimited(t.Context(), "x_api").Limited)

	rec := serve(t, router, http.MethodPut, "/v1/credentials/x_auth", `{"payload":{"user":"alice"},"ttl_ms":18446744073711}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, ok := tr.CachedCredential(t.Context(), "x_auth")
	require.False(t, ok)

	rec = serve(t, router, http.MethodGet, "/v1/limits/x_api/countdown?max_ms=18446744073710", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLongestWindowIsRecorded(t *testing.T) {
	router, tr := newTrackerRouter(t)

	rec := serve(t, router, http.MethodPut, "/v1/limits/x_api", `{"duration_ms":9223372036854}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, tr.IsLimited(t.Context(), "x_api").Limited)
}
