// Package countdown derives the seconds left in an auction from its authoritative end
// timestamp and reports them once per second.
//
// The server's end timestamp is authoritative; the timer is only visual feedback.
// It never reports a negative value and keeps reporting 0 after the deadline passes.
package countdown

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickInterval is how often the timer reports.
const TickInterval = time.Second

// ErrAlreadyStarted is returned when Start is called on a running timer.
var ErrAlreadyStarted = errors.New("countdown already started")

// Remaining returns max(0, floor((end - now) / 1s)). A zero end yields 0.
func Remaining(end, now time.Time) int {
	if end.IsZero() {
		return 0
	}
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Timer ticks once per second against an end timestamp that may change at any time.
type Timer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	end     time.Time
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped timer. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock}
}

// Start reports the remaining seconds immediately and then on every tick until
// ctx is cancelled or Stop is called. onTick runs on the timer's goroutine.
func (t *Timer) Start(ctx context.Context, end time.Time, onTick func(remainingSec int)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	t.end = end
	t.running = true
	t.cancel = cancel
	t.done = make(chan struct{})

	ticker := t.clock.NewTicker(TickInterval)
	go t.run(ctx, ticker, t.done, onTick)

	log.Debug().Time("end_at", end).Msg("countdown started")
	return nil
}

func (t *Timer) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}, onTick func(int)) {
	defer close(done)
	defer ticker.Stop()

	onTick(t.RemainingNow())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			onTick(t.RemainingNow())
		}
	}
}

// SetEnd replaces the end timestamp. The next tick uses the new value.
func (t *Timer) SetEnd(end time.Time) {
	t.mu.Lock()
	t.end = end
	t.mu.Unlock()
}

// End returns the current end timestamp.
func (t *Timer) End() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.end
}

// RemainingNow computes the remaining seconds against the timer's clock.
func (t *Timer) RemainingNow() int {
	return Remaining(t.End(), t.clock.Now())
}

// Stop halts the timer and waits until no further onTick call can happen.
// Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
}
