package reservation

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/usermihir/Agentic-EV/core/model"
)

// Transition events over the reservation lifecycle. Active is the only
// source state; expired, cancelled and fulfilled are terminal.
const (
	eventExpire  = "expire"
	eventCancel  = "cancel"
	eventFulfill = "fulfill"
)

var eventDst = map[string]model.ReservationState{
	eventExpire:  model.ReservationExpired,
	eventCancel:  model.ReservationCancelled,
	eventFulfill: model.ReservationFulfilled,
}

// transition applies one lifecycle event to the reservation state and
// returns the destination state. Events fired from a terminal state
// fail; terminal states are immutable.
func transition(current model.ReservationState, event string) (model.ReservationState, error) {
	m := fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: eventExpire, Src: []string{string(model.ReservationActive)}, Dst: string(model.ReservationExpired)},
			{Name: eventCancel, Src: []string{string(model.ReservationActive)}, Dst: string(model.ReservationCancelled)},
			{Name: eventFulfill, Src: []string{string(model.ReservationActive)}, Dst: string(model.ReservationFulfilled)},
		},
		fsm.Callbacks{},
	)
	if err := m.Event(context.Background(), event); err != nil {
		return current, fmt.Errorf("reservation %s from %s: %w", event, current, err)
	}
	return eventDst[event], nil
}
