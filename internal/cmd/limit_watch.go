package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	errwrap "github.com/postforge/postforge/internal/errors"
	"github.com/postforge/postforge/internal/tracker"
)

var errWatchStopped = errors.New("countdown stopped before the window cleared")

// watchLimit prints the remaining cooldown for key on every poll and returns
// once the window clears. It returns errWatchStopped when max elapses first
// and ctx.Err() when interrupted.
func watchLimit(ctx context.Context, w io.Writer, tr *tracker.Tracker, key string, interval, maxDuration time.Duration) error {
	key = strings.TrimSpace(key)

	expired := make(chan struct{}, 1)
	countdown, err := tr.StartCountdown(ctx, key, tracker.CountdownOptions{
		PollInterval: interval,
		MaxDuration:  maxDuration,
		OnTick: func(remaining time.Duration) {
			_, _ = fmt.Fprintf(w, "%s limited, %s remaining\n", key, formatRemaining(remaining))
		},
		OnExpire: func() {
			_, _ = fmt.Fprintf(w, "%s ready\n", key)
			expired <- struct{}{}
		},
	})
	if err != nil {
		return errwrap.FromTrackerError(ctx, err)
	}

	<-countdown.Done()

	select {
	case <-expired:
		return nil
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errWatchStopped
}

// formatRemaining renders whole seconds, rounding up so "0s" never shows while limited.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Truncate(time.Second).Add(roundUpSecond(d)).String()
}

func roundUpSecond(d time.Duration) time.Duration {
	if d%time.Second == 0 {
		return 0
	}
	return time.Second
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
