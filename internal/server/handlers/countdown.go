package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/metrics"
	"github.com/postforge/postforge/internal/tracker"
)

const (
	defaultPollInterval = time.Second
	defaultMaxCountdown = 30 * time.Minute
)

var activeStreams atomic.Int64

type tickEvent struct {
	RemainingMs int64 `json:"remaining_ms"`
}

// Countdown streams the key's cooldown as Server-Sent Events: a "tick" per
// poll while limited, then a single "expired" event. A stream that ends for
// any other reason (max duration, replaced by a newer countdown) closes with
// a "stopped" event.
func (h *TrackerHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	interval, err := millisParam(r, "interval_ms", h.pollInterval())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	maxDuration, err := millisParam(r, "max_ms", h.maxCountdown())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	var expired atomic.Bool
	countdown, err := h.Tracker.StartCountdown(r.Context(), key, tracker.CountdownOptions{
		PollInterval: interval,
		MaxDuration:  maxDuration,
		OnTick: func(remaining time.Duration) {
			writeEvent(w, rc, "tick", tickEvent{RemainingMs: remaining.Milliseconds()})
		},
		OnExpire: func() {
			expired.Store(true)
			writeEvent(w, rc, "expired", tickEvent{RemainingMs: 0})
		},
	})
	if err != nil {
		// Headers are already sent; report the failure in-band.
		writeEvent(w, rc, "error", apperrors.HTTPErrorDetail{
			Code:    apperrors.CodeInvalidInput,
			Message: err.Error(),
		})
		return
	}

	metrics.SetActiveCountdowns(activeStreams.Add(1))
	defer func() { metrics.SetActiveCountdowns(activeStreams.Add(-1)) }()

	<-countdown.Done()

	if !expired.Load() && r.Context().Err() == nil {
		writeEvent(w, rc, "stopped", tickEvent{RemainingMs: h.Tracker.IsLimited(r.Context(), key).RemainingMillis()})
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return
	}
	_ = rc.Flush()
}

func millisParam(r *http.Request, name string, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s must be a positive integer", name))
	}
	d, err := tracker.DurationFromMillis(value)
	if err != nil {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s is too large", name))
	}
	return d, nil
}

func (h *TrackerHandler) pollInterval() time.Duration {
	if h.PollInterval > 0 {
		return h.PollInterval
	}
	return defaultPollInterval
}

func (h *TrackerHandler) maxCountdown() time.Duration {
	if h.MaxCountdown > 0 {
		return h.MaxCountdown
	}
	return defaultMaxCountdown
}
