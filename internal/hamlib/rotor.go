package hamlib

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/model"
)

// PeerRotor names the rotor controller in errors and logs.
const PeerRotor = "rotor"

// Rotor is a client for rotctld.
type Rotor struct {
	s *session
}

// DialRotor connects to rotctld at addr and verifies it answers the status
// query.
func DialRotor(ctx context.Context, addr string, opts Options) (*Rotor, error) {
	s, err := dial(ctx, PeerRotor, addr, opts)
	if err != nil {
		return nil, err
	}
	return &Rotor{s: s}, nil
}

// Position queries the current pointing as reported by the controller.
func (r *Rotor) Position(ctx context.Context) (model.Position, error) {
	lines, err := r.s.exchange(ctx, "get position", "p", 2)
	if err != nil {
		return model.Position{}, err
	}
	pos, err := parsePosition(lines)
	if err != nil {
		return model.Position{}, &PeerError{Peer: PeerRotor, Op: "get position", Err: err}
	}
	return pos, nil
}

// AbsolutePosition is Position with azimuth normalised into [0, 360).
// Controllers with overlap report e.g. -10 or 370.
func (r *Rotor) AbsolutePosition(ctx context.Context) (model.Position, error) {
	pos, err := r.Position(ctx)
	if err != nil {
		return model.Position{}, err
	}
	pos.Azimuth = core.NormalizeAzimuth(pos.Azimuth)
	return pos, nil
}

// SetPosition commands the rotor to pos.
func (r *Rotor) SetPosition(ctx context.Context, pos model.Position) error {
	cmd := fmt.Sprintf("P %s %s", formatDecimal(pos.Azimuth), formatDecimal(pos.Elevation))
	lines, err := r.s.exchange(ctx, "set position", cmd, 1)
	if err != nil {
		return err
	}
	if err := expectOK(lines[0]); err != nil {
		return &PeerError{Peer: PeerRotor, Op: "set position", Err: err}
	}
	return nil
}

// Addr returns the controller address.
func (r *Rotor) Addr() string { return r.s.addr }

// Close closes the connection.
func (r *Rotor) Close() error { return r.s.close() }

func parsePosition(lines []string) (model.Position, error) {
	raw := strings.Join(lines, "\n")
	if len(lines) != 2 {
		return model.Position{}, &MalformedReplyError{Reply: raw, Err: fmt.Errorf("want 2 lines, got %d", len(lines))}
	}
	az, err := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	if err != nil {
		return model.Position{}, &MalformedReplyError{Reply: raw, Err: fmt.Errorf("azimuth: %w", err)}
	}
	el, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if err != nil {
		return model.Position{}, &MalformedReplyError{Reply: raw, Err: fmt.Errorf("elevation: %w", err)}
	}
	return model.Position{Azimuth: az, Elevation: el}, nil
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
