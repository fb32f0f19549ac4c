// Package tracker answers "is this resource rate limited, or is there a valid
// cached credential for it" without touching the network.
//
// State lives in an injected kv.Storage under two namespaced key families:
//
//	<namespace>.rate_limit.<key>  {"resetAt": <epoch ms>}
//	<namespace>.cred_cache.<key>  {"payload": ..., "setAt": <epoch ms>, "ttlMs": <ms>}
//
// Queries fail open: a broken or unreadable store reads as "not limited" and
// "not cached" so callers still reach the backend, which stays authoritative.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/core"
	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/metrics"
)

// DefaultNamespace prefixes every storage key when no namespace is configured.
const DefaultNamespace = "postforge"

const (
	rateLimitSegment = "rate_limit"
	credCacheSegment = "cred_cache"
)

// Logger receives degrade and self-heal events.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Tracker persists rate limit windows and cached credentials per resource key.
type Tracker struct {
	storage   kv.Storage
	namespace string
	clock     Clock
	logger    Logger

	mu         sync.Mutex
	countdowns map[string]*Countdown
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNamespace sets the storage key prefix.
func WithNamespace(namespace string) Option {
	return func(t *Tracker) {
		if ns := strings.Trim(strings.TrimSpace(namespace), "."); ns != "" {
			t.namespace = ns
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger sets the logger used for degrade events.
func WithLogger(logger Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a tracker over storage. A nil storage gets an in-memory store.
func New(storage kv.Storage, opts ...Option) *Tracker {
	if storage == nil {
		storage = kv.NewMemory()
	}
	t := &Tracker{
		storage:    storage,
		namespace:  DefaultNamespace,
		clock:      systemClock{},
		logger:     zap.NewNop(),
		countdowns: make(map[string]*Countdown),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Namespace returns the configured key prefix.
func (t *Tracker) Namespace() string {
	return t.namespace
}

// LimitStorageKey returns the storage key holding the rate limit window for key.
func (t *Tracker) LimitStorageKey(key string) string {
	return t.namespace + "." + rateLimitSegment + "." + key
}

// CredentialStorageKey returns the storage key holding the cached credential for key.
func (t *Tracker) CredentialStorageKey(key string) string {
	return t.namespace + "." + credCacheSegment + "." + key
}

// RecordLimit marks key as rate limited for d from now, replacing any prior window.
func (t *Tracker) RecordLimit(ctx context.Context, key string, d time.Duration) error {
	ctx = orBackground(ctx)

	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidArgument, d)
	}

	window := core.RateLimitWindow{ResetAt: t.clock.Now().Add(d).UnixMilli()}
	if err := t.store(ctx, t.LimitStorageKey(key), window); err != nil {
		metrics.RecordTrackerOperation("record_limit", false)
		return err
	}

	metrics.RecordTrackerOperation("record_limit", true)
	t.logger.Debug("Rate limit recorded",
		zap.String("key", key),
		zap.Duration("duration", d),
		zap.Time("reset_at", window.ResetTime()))
	return nil
}

// IsLimited reports the current rate limit status for key. It never fails:
// missing, expired, unreadable and malformed entries all read as not limited.
func (t *Tracker) IsLimited(ctx context.Context, key string) core.LimitStatus {
	ctx = orBackground(ctx)

	key, err := normalizeKey(key)
	if err != nil {
		return core.LimitStatus{}
	}

	storageKey := t.LimitStorageKey(key)
	var window core.RateLimitWindow
	if !t.load(ctx, storageKey, &window) {
		return core.LimitStatus{}
	}

	now := t.clock.Now()
	if window.Elapsed(now) {
		t.discard(ctx, storageKey, "expired")
		return core.LimitStatus{ResetAt: window.ResetTime()}
	}

	resetAt := window.ResetTime()
	return core.LimitStatus{
		Limited:   true,
		Remaining: resetAt.Sub(now),
		ResetAt:   resetAt,
	}
}

// CacheCredential stores payload under key for ttl. The payload must be JSON
// encodable; a json.RawMessage is stored as-is.
func (t *Tracker) CacheCredential(ctx context.Context, key string, payload any, ttl time.Duration) error {
	ctx = orBackground(ctx)

	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if ttl.Milliseconds() <= 0 {
		return fmt.Errorf("%w: ttl must be at least 1ms, got %s", ErrInvalidArgument, ttl)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode credential payload: %v", ErrInvalidArgument, err)
	}

	entry := core.CacheEntry{
		Payload: raw,
		SetAt:   t.clock.Now().UnixMilli(),
		TTLMs:   ttl.Milliseconds(),
	}
	if err := t.store(ctx, t.CredentialStorageKey(key), entry); err != nil {
		metrics.RecordTrackerOperation("cache_credential", false)
		return err
	}

	metrics.RecordTrackerOperation("cache_credential", true)
	return nil
}

// CachedCredential returns the raw cached payload for key while it is fresh.
func (t *Tracker) CachedCredential(ctx context.Context, key string) (json.RawMessage, bool) {
	entry, ok := t.CredentialEntry(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

// CredentialEntry is CachedCredential with the stored timestamps, so callers
// can report when the payload expires.
func (t *Tracker) CredentialEntry(ctx context.Context, key string) (core.CacheEntry, bool) {
	ctx = orBackground(ctx)

	key, err := normalizeKey(key)
	if err != nil {
		return core.CacheEntry{}, false
	}

	storageKey := t.CredentialStorageKey(key)
	var entry core.CacheEntry
	if !t.load(ctx, storageKey, &entry) {
		metrics.RecordCredentialLookup(false)
		return core.CacheEntry{}, false
	}
	if entry.TTLMs <= 0 || len(entry.Payload) == 0 {
		t.logger.Warn("Discarding malformed credential entry",
			zap.String("storage_key", storageKey),
			zap.Error(ErrMalformedEntry))
		t.discard(ctx, storageKey, "malformed")
		metrics.RecordCredentialLookup(false)
		return core.CacheEntry{}, false
	}
	if !entry.Valid(t.clock.Now()) {
		t.discard(ctx, storageKey, "expired")
		metrics.RecordCredentialLookup(false)
		return core.CacheEntry{}, false
	}

	metrics.RecordCredentialLookup(true)
	return entry, true
}

// DecodeCachedCredential unmarshals the fresh cached payload for key into out.
func (t *Tracker) DecodeCachedCredential(ctx context.Context, key string, out any) bool {
	raw, ok := t.CachedCredential(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.logger.Warn("Cached credential does not match requested shape",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// Clear removes both the rate limit window and the cached credential for key.
// Clearing a key with no state is not an error.
func (t *Tracker) Clear(ctx context.Context, key string) error {
	return errors.Join(t.ClearLimit(ctx, key), t.ClearCredential(ctx, key))
}

// ClearLimit removes only the rate limit window for key.
func (t *Tracker) ClearLimit(ctx context.Context, key string) error {
	return t.remove(orBackground(ctx), key, t.LimitStorageKey)
}

// ClearCredential removes only the cached credential for key.
func (t *Tracker) ClearCredential(ctx context.Context, key string) error {
	return t.remove(orBackground(ctx), key, t.CredentialStorageKey)
}

func (t *Tracker) remove(ctx context.Context, key string, storageKey func(string) string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := t.storage.Delete(ctx, storageKey(key)); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("%w: delete %s: %w", ErrStorageUnavailable, storageKey(key), err)
	}
	metrics.RecordTrackerOperation("clear", true)
	return nil
}

func (t *Tracker) store(ctx context.Context, storageKey string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", storageKey, err)
	}
	if err := t.storage.Set(ctx, storageKey, payload); err != nil {
		t.logger.Warn("Tracker write failed",
			zap.String("storage_key", storageKey),
			zap.Error(err))
		return fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, storageKey, err)
	}
	return nil
}

// load decodes storageKey into out and reports whether a usable value was found.
func (t *Tracker) load(ctx context.Context, storageKey string, out any) bool {
	raw, err := t.storage.Get(ctx, storageKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			t.logger.Warn("Tracker read failed, treating as absent",
				zap.String("storage_key", storageKey),
				zap.Error(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)))
			metrics.RecordTrackerOperation("read", false)
		}
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		t.logger.Warn("Discarding malformed tracker entry",
			zap.String("storage_key", storageKey),
			zap.Error(fmt.Errorf("%w: %w", ErrMalformedEntry, err)))
		t.discard(ctx, storageKey, "malformed")
		return false
	}
	return true
}

func (t *Tracker) discard(ctx context.Context, storageKey, reason string) {
	if err := t.storage.Delete(ctx, storageKey); err != nil && !errors.Is(err, kv.ErrNotFound) {
		t.logger.Warn("Failed to delete stale tracker entry",
			zap.String("storage_key", storageKey),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: key is required", ErrInvalidArgument)
	}
	return key, nil
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
