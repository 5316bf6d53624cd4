package metrics

import (
	"context"

	"github.com/usermihir/Agentic-EV/core/events"
	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// guardian events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.ReservationEvent:
					_ = sink.RecordReservation(coremetrics.ReservationEvent{
						ReservationID: e.ReservationID,
						StationID:     e.StationID,
						ConnectorID:   e.ConnectorID,
						State:         string(e.State),
						Reason:        e.Reason,
						PromisedMin:   e.PromisedMin,
						ActualMin:     e.ActualMin,
						Time:          e.At,
					})
				case events.QuarantineEvent:
					if r, ok := sink.(coremetrics.QuarantineRecorder); ok {
						_ = r.RecordQuarantine(coremetrics.QuarantineEvent{
							ConnectorID: e.ConnectorID,
							StationID:   e.StationID,
							Quarantined: e.Quarantined,
							Reason:      e.Reason,
							Time:        e.At,
						})
					}
				}
			}
		}
	}()
}
