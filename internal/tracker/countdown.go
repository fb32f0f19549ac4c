package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CountdownOptions configures a countdown started with StartCountdown.
type CountdownOptions struct {
	// OnTick receives the remaining cooldown on every poll while limited.
	OnTick func(remaining time.Duration)
	// OnExpire runs once when the window is observed to have cleared.
	OnExpire func()
	// PollInterval is the time between polls.
	PollInterval time.Duration
	// MaxDuration bounds the countdown even if the key stays limited.
	MaxDuration time.Duration
}

// Countdown is the handle of a running countdown.
type Countdown struct {
	key      string
	tracker  *Tracker
	opts     CountdownOptions
	ticker   Ticker
	timer    Timer
	deadline time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Key returns the resource key the countdown follows.
func (c *Countdown) Key() string {
	return c.key
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Cancel stops the countdown. It does not wait for the goroutine to exit and
// is safe to call repeatedly, including from inside a callback.
func (c *Countdown) Cancel() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

// StartCountdown polls key every opts.PollInterval, reporting the remaining
// cooldown to OnTick and calling OnExpire once the window clears. The first
// poll happens immediately. A countdown already running for key is cancelled.
// The countdown also ends when ctx is done or MaxDuration has elapsed.
func (t *Tracker) StartCountdown(ctx context.Context, key string, opts CountdownOptions) (*Countdown, error) {
	ctx = orBackground(ctx)

	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidArgument, opts.PollInterval)
	}
	if opts.MaxDuration <= 0 {
		return nil, fmt.Errorf("%w: max duration must be positive, got %s", ErrInvalidArgument, opts.MaxDuration)
	}

	c := &Countdown{
		key:      key,
		tracker:  t,
		opts:     opts,
		ticker:   t.clock.NewTicker(opts.PollInterval),
		timer:    t.clock.NewTimer(opts.MaxDuration),
		deadline: t.clock.Now().Add(opts.MaxDuration),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	t.mu.Lock()
	previous := t.countdowns[key]
	t.countdowns[key] = c
	t.mu.Unlock()

	previous.Cancel()

	go c.run(ctx)
	return c, nil
}

// CancelCountdown stops c. A nil or finished handle is ignored.
func (t *Tracker) CancelCountdown(c *Countdown) {
	c.Cancel()
}

// ActiveCountdown returns the running countdown for key, if any.
func (t *Tracker) ActiveCountdown(key string) (*Countdown, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.countdowns[key]
	return c, ok
}

// Close cancels every running countdown.
func (t *Tracker) Close() {
	t.mu.Lock()
	running := make([]*Countdown, 0, len(t.countdowns))
	for _, c := range t.countdowns {
		running = append(running, c)
	}
	t.mu.Unlock()

	for _, c := range running {
		c.Cancel()
	}
}

func (t *Tracker) release(c *Countdown) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.countdowns[c.key] == c {
		delete(t.countdowns, c.key)
	}
}

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)
	defer c.tracker.release(c)
	defer c.ticker.Stop()
	defer c.timer.Stop()

	if c.poll(ctx) {
		return
	}

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-c.timer.C():
			return
		case <-c.ticker.C():
			if c.poll(ctx) {
				return
			}
		}
	}
}

// poll reports whether the countdown is finished. Once MaxDuration has
// elapsed no callback runs, even if the window cleared meanwhile.
func (c *Countdown) poll(ctx context.Context) bool {
	if c.cancelled() || ctx.Err() != nil {
		return true
	}
	if !c.tracker.clock.Now().Before(c.deadline) {
		return true
	}

	status := c.tracker.IsLimited(ctx, c.key)
	if !status.Limited {
		if c.opts.OnExpire != nil {
			c.opts.OnExpire()
		}
		return true
	}

	if c.opts.OnTick != nil {
		c.opts.OnTick(status.Remaining)
	}
	return false
}

func (c *Countdown) cancelled() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}
