package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/postforge/postforge/internal/core"
)

// LimitView is the printable form of a limit status.
type LimitView struct {
	Key         string     `json:"key" yaml:"key"`
	Limited     bool       `json:"limited" yaml:"limited"`
	RemainingMs int64      `json:"remaining_ms" yaml:"remaining_ms"`
	ResetAt     *time.Time `json:"reset_at,omitempty" yaml:"reset_at,omitempty"`
}

// NewLimitView converts a tracker status for key.
func NewLimitView(key string, status core.LimitStatus) LimitView {
	view := LimitView{
		Key:         key,
		Limited:     status.Limited,
		RemainingMs: status.RemainingMillis(),
	}
	if status.Limited && !status.ResetAt.IsZero() {
		resetAt := status.ResetAt.UTC()
		view.ResetAt = &resetAt
	}
	return view
}

// CredentialView is the printable form of a cached credential lookup.
type CredentialView struct {
	Key       string     `json:"key" yaml:"key"`
	Found     bool       `json:"found" yaml:"found"`
	Payload   any        `json:"payload,omitempty" yaml:"payload,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// NewCredentialView decodes the entry payload so every format sees structured data.
func NewCredentialView(key string, entry core.CacheEntry, found bool) (CredentialView, error) {
	view := CredentialView{Key: key, Found: found}
	if !found || len(entry.Payload) == 0 {
		return view, nil
	}
	expiresAt := entry.ExpiresAt()
	view.ExpiresAt = &expiresAt
	if err := json.Unmarshal(entry.Payload, &view.Payload); err != nil {
		return view, fmt.Errorf("decode credential payload: %w", err)
	}
	return view, nil
}

func limitStatusLabel(view LimitView) string {
	if view.Limited {
		return "limited"
	}
	return "clear"
}

func remainingLabel(view LimitView) string {
	if !view.Limited {
		return "-"
	}
	return (time.Duration(view.RemainingMs) * time.Millisecond).Round(time.Second).String()
}

func resetAtLabel(view LimitView) string {
	if view.ResetAt == nil {
		return "-"
	}
	return view.ResetAt.Format(time.RFC3339)
}

func payloadLabel(view CredentialView) (string, error) {
	if !view.Found {
		return "(not cached)", nil
	}
	data, err := json.Marshal(view.Payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func expiresAtLabel(view CredentialView) string {
	if view.ExpiresAt == nil {
		return "-"
	}
	return view.ExpiresAt.Format(time.RFC3339)
}

func updatedAtLabel(updatedAt time.Time) string {
	if updatedAt.IsZero() {
		return "-"
	}
	return updatedAt.UTC().Format(time.RFC3339)
}
