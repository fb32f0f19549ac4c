package xapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/postforge/postforge/internal/core"
	"github.com/postforge/postforge/internal/metrics"
	"github.com/postforge/postforge/internal/tracker"
)

const (
	DefaultLimitKey        = "x_api"
	DefaultAuthKey         = "x_auth"
	DefaultCooldown        = 15 * time.Minute
	DefaultAuthTTL         = 15 * time.Minute
	verifyPath             = "/api/x/verify"
	verifyEndpoint         = "verify"
	maxResponseBody  int64 = 1 << 20
)

// ErrUnexpectedStatus is returned when the backend answers with a non-2xx, non-429 status.
var ErrUnexpectedStatus = errors.New("unexpected x api response")

// Credentials are the account secrets forwarded to the verify endpoint.
type Credentials struct {
	APIKey       string `json:"apiKey"`
	APISecret    string `json:"apiSecret"`
	AccessToken  string `json:"accessToken"`
	AccessSecret string `json:"accessSecret"`
}

// fingerprint identifies the account behind creds without storing secrets.
func (c Credentials) fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{c.APIKey, c.APISecret, c.AccessToken, c.AccessSecret}, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// Validate checks that every secret is present.
func (c Credentials) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"apiKey", c.APIKey},
		{"apiSecret", c.APISecret},
		{"accessToken", c.AccessToken},
		{"accessSecret", c.AccessSecret},
	}

	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", tracker.ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}

// VerifyResult is the decoded body of a successful verification.
type VerifyResult struct {
	Verified  bool   `json:"verified"`
	Username  string `json:"username,omitempty"`
	UserID    string `json:"userId,omitempty"`
	FromCache bool   `json:"-"`
}

// cachedVerification is what the guard stores under the auth key. A cached
// entry only answers for the credentials that produced it.
type cachedVerification struct {
	VerifyResult
	Fingerprint string `json:"fingerprint"`
}

// RateLimitedError reports that the X API cooldown is still running.
type RateLimitedError struct {
	Key       string
	Remaining time.Duration
	ResetAt   time.Time
	ExtraData map[string]any
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("x api rate limited, retry in %s", e.Remaining.Round(time.Second))
}

// Status summarizes the guard's view of the X API.
type Status struct {
	Limit      core.LimitStatus `json:"limit"`
	AuthCached bool             `json:"auth_cached"`
}

// Guard fronts the backend X endpoints with the rate-limit tracker.
type Guard struct {
	Tracker         *tracker.Tracker
	Client          *http.Client
	BaseURL         string
	LimitKey        string
	AuthKey         string
	DefaultCooldown time.Duration
	AuthTTL         time.Duration
	Clock           func() time.Time
}

// VerifyCredentials returns a cached verification when one is valid, refuses
// to call the backend while limited, and otherwise posts creds to the verify
// endpoint. A 429 response starts a cooldown. Only a verified 2xx result is
// cached, and only for the same credentials.
func (g *Guard) VerifyCredentials(ctx context.Context, creds Credentials) (*VerifyResult, error) {
	if g == nil || g.Tracker == nil {
		return nil, errors.New("x api guard is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	fingerprint := creds.fingerprint()
	var cached cachedVerification
	if g.Tracker.DecodeCachedCredential(ctx, g.authKey(), &cached) && cached.Fingerprint == fingerprint && cached.Verified {
		result := cached.VerifyResult
		result.FromCache = true
		return &result, nil
	}

	if status := g.Tracker.IsLimited(ctx, g.limitKey()); status.Limited {
		metrics.RecordXAPIRequest(verifyEndpoint, "blocked", 0)
		return nil, &RateLimitedError{Key: g.limitKey(), Remaining: status.Remaining, ResetAt: status.ResetAt}
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	reqURL, err := g.endpointURL(verifyPath)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := g.now()
	resp, err := g.client().Do(req)
	if err != nil {
		metrics.RecordXAPIRequest(verifyEndpoint, "error", time.Since(started))
		return nil, fmt.Errorf("x api verify: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordXAPIRequest(verifyEndpoint, "rate_limited", time.Since(started))
		wait, extra := retryAfterHeader(resp, g.now())
		if wait <= 0 {
			wait = g.cooldown()
		}
		if err := g.Tracker.RecordLimit(ctx, g.limitKey(), wait); err != nil {
			return nil, err
		}
		limited := &RateLimitedError{Key: g.limitKey(), Remaining: wait, ResetAt: g.now().Add(wait), ExtraData: extra}
		if status := g.Tracker.IsLimited(ctx, g.limitKey()); status.Limited {
			limited.Remaining, limited.ResetAt = status.Remaining, status.ResetAt
		}
		return nil, limited
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordXAPIRequest(verifyEndpoint, "success", time.Since(started))
		var result VerifyResult
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&result); err != nil {
			return nil, fmt.Errorf("x api verify: decode response: %w", err)
		}
		if !result.Verified {
			return &result, nil
		}
		entry := cachedVerification{VerifyResult: result, Fingerprint: fingerprint}
		if err := g.Tracker.CacheCredential(ctx, g.authKey(), entry, g.authTTL()); err != nil {
			return nil, err
		}
		return &result, nil
	default:
		metrics.RecordXAPIRequest(verifyEndpoint, "unexpected_status", time.Since(started))
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// Status reports the current limit window and whether a verification is cached.
func (g *Guard) Status(ctx context.Context) Status {
	if g == nil || g.Tracker == nil {
		return Status{}
	}
	_, cached := g.Tracker.CachedCredential(ctx, g.authKey())
	return Status{
		Limit:      g.Tracker.IsLimited(ctx, g.limitKey()),
		AuthCached: cached,
	}
}

func (g *Guard) endpointURL(path string) (string, error) {
	base := strings.TrimSpace(g.BaseURL)
	if base == "" {
		return "", errors.New("x api base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid x api base url: %w", err)
	}
	return parsed.ResolveReference(&url.URL{Path: path}).String(), nil
}

func (g *Guard) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (g *Guard) limitKey() string {
	if key := strings.TrimSpace(g.LimitKey); key != "" {
		return key
	}
	return DefaultLimitKey
}

func (g *Guard) authKey() string {
	if key := strings.TrimSpace(g.AuthKey); key != "" {
		return key
	}
	return DefaultAuthKey
}

func (g *Guard) cooldown() time.Duration {
	if g.DefaultCooldown > 0 {
		return g.DefaultCooldown
	}
	return DefaultCooldown
}

func (g *Guard) authTTL() time.Duration {
	if g.AuthTTL > 0 {
		return g.AuthTTL
	}
	return DefaultAuthTTL
}

func (g *Guard) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}
