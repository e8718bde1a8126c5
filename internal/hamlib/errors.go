package hamlib

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyReply is returned when a peer closes the connection or answers a
// command with nothing.
var ErrEmptyReply = errors.New("empty reply")

// PeerError identifies which peer and operation failed. Every error returned
// by Rotor and Receiver is a *PeerError.
type PeerError struct {
	Peer string // "rotor" or "receiver"
	Op   string // e.g. "connect", "set position"
	Err  error
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Peer, e.Op, e.Err)
}

func (e *PeerError) Unwrap() error { return e.Err }

// ReplyError is a well-formed reply other than the success report, usually
// a hamlib "RPRT <code>" error line.
type ReplyError struct {
	Reply string
	// Code is the hamlib status code when Reply is a report line.
	Code    int
	HasCode bool
}

func newReplyError(reply string) *ReplyError {
	e := &ReplyError{Reply: reply}
	if rest, ok := strings.CutPrefix(reply, reportPrefix); ok {
		if code, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			e.Code, e.HasCode = code, true
		}
	}
	return e
}

func (e *ReplyError) Error() string {
	if e.HasCode {
		return fmt.Sprintf("peer reported error %d", e.Code)
	}
	return fmt.Sprintf("unexpected reply %q", e.Reply)
}

// MalformedReplyError is a reply that could not be parsed.
type MalformedReplyError struct {
	Reply string
	Err   error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("malformed reply %q: %v", e.Reply, e.Err)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }
