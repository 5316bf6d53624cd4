// Package events defines the event types published on the internal bus
// so observers (metrics bridges, operator feeds) can follow guardian
// decisions without coupling to the components that make them.
package events

import (
	"time"

	"github.com/usermihir/Agentic-EV/core/model"
)

// ReservationEvent is published on every reservation transition.
type ReservationEvent struct {
	ReservationID string
	ConnectorID   string
	StationID     string
	State         model.ReservationState
	Reason        string
	PromisedMin   float64
	ActualMin     float64
	At            time.Time
}

// QuarantineEvent is published when a connector is pulled from or
// returned to rotation.
type QuarantineEvent struct {
	ConnectorID string
	StationID   string
	Quarantined bool
	Reason      string
	At          time.Time
}

// PlanEvent summarises one planner run.
type PlanEvent struct {
	Action     string
	Stations   int
	Candidates int
	Elapsed    time.Duration
	Degraded   bool
	At         time.Time
}
