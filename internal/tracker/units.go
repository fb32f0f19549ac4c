package tracker

import (
	"fmt"
	"math"
	"time"
)

// MaxWindow is the longest cooldown or TTL a time.Duration can hold.
const MaxWindow = time.Duration(math.MaxInt64)

const (
	maxMillis  = int64(MaxWindow / time.Millisecond)
	maxSeconds = int64(MaxWindow / time.Second)
)

// DurationFromMillis converts a caller-supplied millisecond count. Values too
// large for time.Duration are rejected with ErrInvalidArgument; zero and
// negative values pass through for RecordLimit and CacheCredential to judge.
func DurationFromMillis(ms int64) (time.Duration, error) {
	if ms > maxMillis {
		return 0, fmt.Errorf("%w: %d ms exceeds the maximum of %d ms", ErrInvalidArgument, ms, maxMillis)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ClampSeconds converts seconds announced by a remote service, saturating at
// MaxWindow instead of wrapping.
func ClampSeconds(s int64) time.Duration {
	switch {
	case s <= 0:
		return 0
	case s > maxSeconds:
		return MaxWindow
	default:
		return time.Duration(s) * time.Second
	}
}
