package compose

// Phase is the recomputation state of a layout session.
//
// The lifecycle is a small explicit machine rather than boolean flags:
//
//	Clean ──input──▶ Dirty ──recompute──▶ Recomputed ──commit──▶ Committed
//	  ▲                                                              │
//	  └────────────────────────── (≡ Clean) ─────────────────────────┘
//
// Committed is Clean with a plan available; a further input change
// moves it back to Dirty.
type Phase int

const (
	// PhaseClean means the committed plan (if any) reflects all inputs.
	PhaseClean Phase = iota

	// PhaseDirty means an input changed since the last recompute:
	// components, template, geometry, or a material measurement delta.
	PhaseDirty

	// PhaseRecomputed means a pending plan exists but is not yet
	// visible to consumers.
	PhaseRecomputed

	// PhaseCommitted means the pending plan was promoted. Equivalent to
	// PhaseClean for transition purposes.
	PhaseCommitted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseClean:
		return "clean"
	case PhaseDirty:
		return "dirty"
	case PhaseRecomputed:
		return "recomputed"
	case PhaseCommitted:
		return "committed"
	}
	return "unknown"
}

// Event is a state machine input.
type Event int

const (
	// EventInputChanged fires on any structural or material change:
	// component set, template, geometry, or a measurement batch that
	// actually moved a height.
	EventInputChanged Event = iota

	// EventRecomputed fires when a pending plan has been produced.
	EventRecomputed

	// EventCommitted fires when the pending plan is promoted.
	EventCommitted
)

// Transition is the pure transition function of the phase machine. It
// returns the next phase and whether the event is legal in the current
// phase. Illegal events leave the phase unchanged.
func Transition(p Phase, ev Event) (Phase, bool) {
	switch ev {
	case EventInputChanged:
		// Any phase accepts new input. A pending plan is abandoned:
		// it was computed against stale inputs.
		return PhaseDirty, true
	case EventRecomputed:
		if p == PhaseDirty {
			return PhaseRecomputed, true
		}
	case EventCommitted:
		if p == PhaseRecomputed {
			return PhaseCommitted, true
		}
	}
	return p, false
}
