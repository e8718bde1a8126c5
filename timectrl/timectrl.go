package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source the tracker propagates against. It lets the
// coordinator run on wall-clock time in production and on a shifted or
// frozen time in rehearsals and tests.
type Clock interface {
	// Now returns the current tracking time.
	Now() time.Time
	// After returns a channel that receives the tracking time once d has
	// elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock is a Clock backed by the system clock.
type RealClock struct{}

// Now returns time.Now in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// After delegates to time.After.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// TimeController is a Clock that runs at wall-clock rate from a chosen
// starting instant. It is used to rehearse a pass ahead of time: the tracker
// behaves as if the controller's time were the real time.
type TimeController struct {
	mu     sync.RWMutex
	offset time.Duration

	// wall is overridable in tests.
	wall func() time.Time
}

// NewTimeController constructs a controller whose Now starts at start.
func NewTimeController(start time.Time) *TimeController {
	tc := &TimeController{wall: time.Now}
	tc.SetTime(start)
	return tc
}

// Now returns the controlled time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.wall().Add(tc.offset).UTC()
}

// After returns a channel that receives the controlled time after d of wall
// time has elapsed. Implements Clock.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	time.AfterFunc(d, func() { ch <- tc.Now() })
	return ch
}

// SetTime moves the controlled time to t; it keeps advancing from there.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.offset = t.Sub(tc.wall())
}

// Offset returns the difference between controlled and wall time.
func (tc *TimeController) Offset() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.offset
}

// Sleep blocks for d on clock c, returning early with ctx.Err() when ctx is
// cancelled.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
