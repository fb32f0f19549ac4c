package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/tracker"
)

type cacheCredentialRequest struct {
	Payload json.RawMessage `json:"payload"`
	TTLMs   int64           `json:"ttl_ms"`
}

type credentialResponse struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// PutCredential caches the payload for ttl_ms.
func (h *TrackerHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req cacheCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		respondWithError(w, r, apperrors.NewInvalidInputError("payload is required"))
		return
	}

	ttl, err := tracker.DurationFromMillis(req.TTLMs)
	if err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	if err := h.Tracker.CacheCredential(r.Context(), chi.URLParam(r, "key"), req.Payload, ttl); err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCredential returns the cached payload, or 404 when absent or expired.
func (h *TrackerHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	payload, ok := h.Tracker.CachedCredential(r.Context(), key)
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError("no cached credential for key"))
		return
	}
	writeJSON(w, http.StatusOK, credentialResponse{Key: key, Payload: payload})
}

// DeleteCredential removes the cached payload, leaving any limit in place.
func (h *TrackerHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.ClearCredential(r.Context(), chi.URLParam(r, "key")); err != nil {
		respondWithError(w, r, apperrors.FromTrackerError(r.Context(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
