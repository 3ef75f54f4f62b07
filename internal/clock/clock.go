// Package clock provides the two notions of time tether uses: a logical
// sequence for ordering recorded exchanges, and a Sleeper for the waits
// between attempts.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

// Seq is a monotonic logical clock. Exchanges are ordered by the values it
// hands out, never by wall time, so replays see the same order.
//
// Seq is safe for concurrent use.
type Seq struct {
	n atomic.Int64
}

// NewSeq creates a sequence whose first Next returns 1.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a sequence resuming after start.
func NewSeqAt(start int64) *Seq {
	s := &Seq{}
	s.n.Store(start)
	return s
}

// Next returns the next value.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last value handed out.
func (s *Seq) Current() int64 {
	return s.n.Load()
}

// Sleeper blocks for a duration. Implementations return early with the
// context's error when it is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done. Non-positive durations return
// immediately.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}
