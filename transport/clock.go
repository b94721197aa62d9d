// Package transport owns the logical playhead: it flattens a tab into a
// time-ordered trigger list, walks it against a clock with a bounded
// lookahead, and implements play/pause/stop/loop/tempo-change semantics.
package transport

import "time"

// Clock is the transport's time source. Injecting it keeps the scheduling
// algorithm deterministic under test; real playback uses WallClock.
type Clock interface {
	Now() time.Duration
}

// WallClock reads the monotonic wall clock, as elapsed time since the clock
// was created.
type WallClock struct {
	epoch time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{epoch: time.Now()}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.epoch)
}
