package hamlib

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

// PeerReceiver names the receiver in errors and logs.
const PeerReceiver = "receiver"

// Receiver is a client for gqrx's remote control port.
type Receiver struct {
	s *session
}

// DialReceiver connects to the receiver at addr and verifies it answers the
// status query.
func DialReceiver(ctx context.Context, addr string, opts Options) (*Receiver, error) {
	s, err := dial(ctx, PeerReceiver, addr, opts)
	if err != nil {
		return nil, err
	}
	return &Receiver{s: s}, nil
}

// SetFrequency tunes the receiver to hz, rounded to the nearest hertz.
func (r *Receiver) SetFrequency(ctx context.Context, hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return &PeerError{Peer: PeerReceiver, Op: "set frequency", Err: fmt.Errorf("invalid frequency %v", hz)}
	}
	cmd := "F " + strconv.FormatFloat(math.Round(hz), 'f', 0, 64)
	lines, err := r.s.exchange(ctx, "set frequency", cmd, 1)
	if err != nil {
		return err
	}
	if err := expectOK(lines[0]); err != nil {
		return &PeerError{Peer: PeerReceiver, Op: "set frequency", Err: err}
	}
	return nil
}

// Addr returns the receiver address.
func (r *Receiver) Addr() string { return r.s.addr }

// Close closes the connection.
func (r *Receiver) Close() error { return r.s.close() }
