package model

import "time"

// ReservationState is the lifecycle state of a reservation. Active is
// the only non-terminal state.
type ReservationState string

const (
	ReservationActive    ReservationState = "active"
	ReservationExpired   ReservationState = "expired"
	ReservationCancelled ReservationState = "cancelled"
	ReservationFulfilled ReservationState = "fulfilled"
)

// Terminal reports whether the state admits no further transitions.
func (s ReservationState) Terminal() bool {
	return s == ReservationExpired || s == ReservationCancelled || s == ReservationFulfilled
}

// Reservation is a hold on a connector for an inbound driver.
type Reservation struct {
	ID          string           `json:"reservation_id"`
	StationID   string           `json:"station_id"`
	ConnectorID string           `json:"connector_id"`
	UserID      string           `json:"user_id"`
	ETAMin      float64          `json:"eta_min"`
	ExpiresAt   time.Time        `json:"expires_at"`
	PromisedMin float64          `json:"promised_start_min"`
	State       ReservationState `json:"state"`

	// ActualMin is the observed session start, recorded on fulfilment.
	// Promised vs actual divergence feeds the accuracy metric.
	ActualMin float64 `json:"actual_start_min,omitempty"`
}

// Intervention is one append-only audit record per action the core
// takes. The core writes these but never reads them back for decisions.
type Intervention struct {
	Timestamp   time.Time `json:"ts"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason,omitempty"`
	StationID   string    `json:"station_id,omitempty"`
	ConnectorID string    `json:"connector_id,omitempty"`
	Promised    *float64  `json:"promised_start,omitempty"`
	Actual      *float64  `json:"actual_start,omitempty"`
}
