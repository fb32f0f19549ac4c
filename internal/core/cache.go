package core

import (
	"encoding/json"
	"time"
)

// CacheEntry is a cached credential result with its own TTL.
type CacheEntry struct {
	Payload json.RawMessage `json:"payload"`
	SetAt   int64           `json:"setAt"`
	TTLMs   int64           `json:"ttlMs"`
}

// Valid reports whether the entry is still fresh at now.
func (e CacheEntry) Valid(now time.Time) bool {
	if e.TTLMs <= 0 {
		return false
	}
	return now.UnixMilli()-e.SetAt < e.TTLMs
}

// ExpiresAt returns the instant the entry stops being served.
func (e CacheEntry) ExpiresAt() time.Time {
	return time.UnixMilli(e.SetAt + e.TTLMs).UTC()
}
