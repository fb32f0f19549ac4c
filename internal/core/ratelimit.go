package core

import "time"

// RateLimitWindow is a persisted cooldown for a resource.
// ResetAt is stored as absolute epoch milliseconds.
type RateLimitWindow struct {
	ResetAt int64 `json:"resetAt"`
}

// Elapsed reports whether the window has passed at now.
func (w RateLimitWindow) Elapsed(now time.Time) bool {
	return now.UnixMilli() >= w.ResetAt
}

// ResetTime returns ResetAt as a UTC time.
func (w RateLimitWindow) ResetTime() time.Time {
	return time.UnixMilli(w.ResetAt).UTC()
}

// LimitStatus is the answer to "is this resource rate limited right now".
type LimitStatus struct {
	Limited   bool          `json:"limited"`
	Remaining time.Duration `json:"-"`
	ResetAt   time.Time     `json:"-"`
}

// RemainingMillis returns the remaining cooldown in milliseconds.
func (s LimitStatus) RemainingMillis() int64 {
	if !s.Limited || s.Remaining <= 0 {
		return 0
	}
	return s.Remaining.Milliseconds()
}
