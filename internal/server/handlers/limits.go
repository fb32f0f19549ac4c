package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/output"
	"github.com/postforge/postforge/internal/tracker"
)

// TrackerHandler exposes tracker operations over HTTP.
type TrackerHandler struct {
	Tracker *tracker.Tracker
	// PollInterval and MaxCountdown are countdown defaults when the query omits them.
	PollInterval time.Duration
	MaxCountdown time.Duration
}

type recordLimitRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

// GetLimit reports whether the key is inside a cooldown window.
func (h *TrackerHandler) GetLimit(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	status := h.Tracker.IsLimited(r.Context(), key)
	writeJSON(w, http.StatusOK, output.NewLimitView(key, status))
}

// PutLimit records a cooldown of duration_ms for the key.
func (h *TrackerHandler) PutLimit(w http.ResponseWriter, r *http.Request) {
	var req recordLimitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	duration, err := tracker.DurationFromMillis(req.DurationMs)
	if err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	if err := h.Tracker.RecordLimit(r.Context(), chi.URLParam(r, "key"), duration); err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteLimit clears both the window and the cached credential for the key.
func (h *TrackerHandler) DeleteLimit(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.Clear(r.Context(), chi.URLParam(r, "key")); err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
