// Package phases classifies a stream of metrics snapshots into the four
// phases of a serve: preparation, loading, contact and follow-through.
//
// The Detector is a cyclic state machine driven by time-windowed thresholds
// on the snapshots produced by biomech.Extractor. It emits a PhaseEvent on
// every transition and keeps an append-only history of them.
package phases

import (
	"fmt"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
)

// Phase is one of the four ordered serve phases.
type Phase string

const (
	Preparation   Phase = "preparation"
	Loading       Phase = "loading"
	Contact       Phase = "contact"
	FollowThrough Phase = "follow_through"
)

// AllPhases lists the phases in cycle order.
var AllPhases = []Phase{Preparation, Loading, Contact, FollowThrough}

// Next returns the phase that follows p in the cycle.
func (p Phase) Next() Phase {
	switch p {
	case Preparation:
		return Loading
	case Loading:
		return Contact
	case Contact:
		return FollowThrough
	default:
		return Preparation
	}
}

// Valid reports whether p is one of the four phases.
func (p Phase) Valid() bool {
	for _, ph := range AllPhases {
		if p == ph {
			return true
		}
	}
	return false
}

// ParsePhase converts a stored phase name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// PhaseEvent records a transition into Phase at Timestamp. Duration is the
// time spent in Phase, filled in when the next transition happens; it is nil
// for the most recent event.
type PhaseEvent struct {
	Phase     Phase                   `json:"phase"`
	Timestamp float64                 `json:"timestamp"`
	Snapshot  biomech.MetricsSnapshot `json:"snapshot"`
	Duration  *float64                `json:"duration,omitempty"`
}

// ServeCycle holds the representative snapshots of one serve: those that
// triggered the Loading and Contact transitions.
type ServeCycle struct {
	Loading PhaseEvent `json:"loading"`
	Contact PhaseEvent `json:"contact"`
}
