package tracker

import "github.com/signalsfoundry/antenna-tracker/model"

// State is the coordinator's tracking state.
type State struct {
	// Selection is the requested satellite name; empty while idle.
	Selection string
	// Commanded is the last position sent to the rotor, quantized. Both
	// axes are always updated together.
	Commanded model.Position
	// Signaled is the last satellite for which arrival was notified.
	Signaled string
	// Tracking is true while the selection is above the horizon.
	Tracking bool
}

// Mode is the coarse tracking state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeBelowHorizon
	ModeTracking
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeBelowHorizon:
		return "below_horizon"
	case ModeTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Mode derives the coarse state from s.
func (s State) Mode() Mode {
	switch {
	case s.Selection == "":
		return ModeIdle
	case s.Tracking:
		return ModeTracking
	default:
		return ModeBelowHorizon
	}
}

// Phase is the coordinator's lifecycle stage.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseHoming
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseHoming:
		return "homing"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
