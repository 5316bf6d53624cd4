package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reservation and planning paths. Callers
// classify failures with errors.Is; the typed wrappers below carry
// the identifiers involved.
var (
	// ErrConflict signals a lost reservation race: the connector
	// already carries an active reservation. Recoverable, the planner
	// retries with the next-ranked connector.
	ErrConflict = errors.New("reservation conflict")

	// ErrBufferViolation signals that granting a hold would drop the
	// station below its emergency buffer.
	ErrBufferViolation = errors.New("emergency buffer violation")

	// ErrNotFound signals an unknown station, connector or reservation.
	ErrNotFound = errors.New("not found")

	// ErrTimeout signals an external collaborator exceeding its
	// deadline. Recovered locally by falling back to defaults.
	ErrTimeout = errors.New("collaborator timeout")

	// ErrValidation signals malformed input, rejected before any
	// state mutation.
	ErrValidation = errors.New("validation failed")
)

// ConflictError reports which connector lost a reservation race.
type ConflictError struct {
	ConnectorID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("connector %s already has an active reservation", e.ConnectorID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// BufferViolationError reports an admission refusal that would breach
// the station's emergency buffer.
type BufferViolationError struct {
	StationID string
	Buffer    int
	Free      int
}

func (e *BufferViolationError) Error() string {
	return fmt.Sprintf("station %s: granting would leave %d free connectors, buffer requires %d",
		e.StationID, e.Free-1, e.Buffer)
}

func (e *BufferViolationError) Unwrap() error { return ErrBufferViolation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError names the rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
