// Package call drives the mirrored per-party call state machine:
// dialing -> ringing -> connected -> ended. Every logical call is
// represented by two ActiveCall records, one keyed under each party's
// contact id, sharing a single call id. Transitions always write both
// records in the same step.
package call

import (
	"slices"
	"time"
)

// MediaKind is the call media type.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// State is a call record's lifecycle state. Absence of a record is idle.
type State string

const (
	StateDialing   State = "dialing"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

// validTransitions defines allowed state transitions. Ended is terminal;
// records in it are only ever removed.
var validTransitions = map[State][]State{
	StateDialing:   {StateRinging, StateEnded},
	StateRinging:   {StateConnected, StateEnded},
	StateConnected: {StateEnded},
	StateEnded:     {},
}

func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Direction distinguishes the initiator's record from the target's.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// ActiveCall is one party's view of a live call. The two mirrored records
// for a call id share every status transition; MicMuted, CamOff and Docked
// are per-viewer and never mirrored.
type ActiveCall struct {
	CallID        string
	PeerID        string
	Media         MediaKind
	Status        State
	Direction     Direction
	StartedAt     time.Time
	AcceptedAt    time.Time // zero until answered
	EndedAt       time.Time // zero until ended
	ConnectedSecs int
	MicMuted      bool
	CamOff        bool
	Docked        bool
}

// Answered reports whether the call was ever connected.
func (c *ActiveCall) Answered() bool {
	return !c.AcceptedAt.IsZero()
}
