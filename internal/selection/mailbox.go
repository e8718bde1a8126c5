// Package selection receives satellite selections from the network and hands
// them to the tracking coordinator.
package selection

import (
	"context"
	"sync"
	"time"
)

// ExitCommand is the selection payload that stops the tracker.
const ExitCommand = "EXIT"

// Request is a pending selection: either a catalog satellite name or the
// shutdown sentinel.
type Request struct {
	Name     string
	Shutdown bool
}

// ShutdownRequest is the sentinel value.
var ShutdownRequest = Request{Shutdown: true}

// Mailbox is a single-slot hand-off between the listener and the
// coordinator. Put never blocks and replaces any unread value, so the reader
// only ever sees the most recent selection. A pending shutdown is never
// replaced by a later name.
type Mailbox struct {
	mu   sync.Mutex
	slot chan Request
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{slot: make(chan Request, 1)}
}

// Put stores r, discarding any unread value.
func (m *Mailbox) Put(r Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case prev := <-m.slot:
		if prev.Shutdown && !r.Shutdown {
			r = prev
		}
	default:
	}
	// The slot is empty and only writers holding mu fill it.
	m.slot <- r
}

// Get waits up to wait for a value. It returns false on timeout or when ctx
// is done.
func (m *Mailbox) Get(ctx context.Context, wait time.Duration) (Request, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case r := <-m.slot:
		return r, true
	case <-timer.C:
		return Request{}, false
	case <-ctx.Done():
		return Request{}, false
	}
}

// Pending reports whether a value is waiting. Intended for tests and
// diagnostics; the answer may be stale immediately.
func (m *Mailbox) Pending() bool {
	return len(m.slot) > 0
}
