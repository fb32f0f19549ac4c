package xapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/postforge/postforge/internal/tracker"
)

// retryAfterHeader derives the cooldown announced by a rate limited response.
// Retry-After may hold delay seconds or an HTTP date; x-rate-limit-reset holds
// the epoch second at which the window reopens.
func retryAfterHeader(resp *http.Response, now time.Time) (time.Duration, map[string]any) {
	if resp == nil || resp.Header == nil {
		return 0, nil
	}

	if retry := strings.TrimSpace(resp.Header.Get("Retry-After")); retry != "" {
		extra := map[string]any{"retry_after": retry}
		if seconds, err := strconv.ParseInt(retry, 10, 64); err == nil && seconds > 0 {
			return tracker.ClampSeconds(seconds), extra
		}
		if parsed, err := http.ParseTime(retry); err == nil {
			return positive(parsed.Sub(now)), extra
		}
	}

	if reset := strings.TrimSpace(resp.Header.Get("x-rate-limit-reset")); reset != "" {
		extra := map[string]any{"rate_limit_reset": reset}
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			return positive(time.Unix(epoch, 0).Sub(now)), extra
		}
		return 0, extra
	}

	return 0, nil
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
