package session

import "fmt"

// Phase represents the lifecycle phase of a call session
type Phase int

const (
	// PhaseInitializing is the initial phase while the session binds its profile
	PhaseInitializing Phase = iota
	// PhaseActive is after setup succeeded, the conversation is running
	PhaseActive
	// PhaseClosing is while the wind-down sequence runs (closing remark, release)
	PhaseClosing
	// PhaseTerminated is the final phase after all resources are released
	PhaseTerminated
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "Initializing"
	case PhaseActive:
		return "Active"
	case PhaseClosing:
		return "Closing"
	case PhaseTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// validTransitions defines which phase transitions are allowed.
// Initializing may jump straight to Terminated, but only for setup
// failures; every established session winds down through Closing.
var validTransitions = map[Phase][]Phase{
	PhaseInitializing: {PhaseActive, PhaseTerminated},
	PhaseActive:       {PhaseClosing},
	PhaseClosing:      {PhaseTerminated},
	PhaseTerminated:   {}, // Terminal phase, no transitions allowed
}

// CanTransitionTo checks if a transition from current phase to next phase is valid
func (p Phase) CanTransitionTo(next Phase) bool {
	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}
	for _, phase := range allowed {
		if phase == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is the terminal phase
func (p Phase) IsTerminal() bool {
	return p == PhaseTerminated
}

// Reason explains why a session terminated. It is recorded exactly
// once, by whichever trigger wins the race into Closing.
type Reason int

const (
	// ReasonNatural means the conversation concluded on its own
	ReasonNatural Reason = iota
	// ReasonMaxDuration means the call hit the hard duration ceiling
	ReasonMaxDuration
	// ReasonInactivity means the caller went silent past the inactivity window
	ReasonInactivity
	// ReasonExternalDisconnect means the far end hung up first
	ReasonExternalDisconnect
	// ReasonError means setup or runtime failure forced the session down
	ReasonError
)

// String returns the wire representation of the termination reason
func (r Reason) String() string {
	switch r {
	case ReasonNatural:
		return "natural"
	case ReasonMaxDuration:
		return "max_duration"
	case ReasonInactivity:
		return "inactivity"
	case ReasonExternalDisconnect:
		return "external_disconnect"
	case ReasonError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}
