// Package reservation owns the admission-control state machine for
// connector holds. It is the sole writer of connector status and
// reservation state; all transitions for a connector are serialized
// through a per-connector exclusion scope, and grants additionally
// through a per-station scope so the emergency-buffer count stays
// atomic with the grant. Locks are held only for the duration of the
// transition, never across external I/O.
package reservation

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/usermihir/Agentic-EV/core/audit"
	"github.com/usermihir/Agentic-EV/core/events"
	"github.com/usermihir/Agentic-EV/core/logger"
	"github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/internal/eventbus"
)

// Quarantine actions accepted by the manager.
const (
	ActionQuarantine   = "QUARANTINE"
	ActionUnquarantine = "UNQUARANTINE"
)

// StationRepo reads station records.
type StationRepo interface {
	Station(id string) (model.Station, error)
}

// ConnectorRepo reads and mutates connector records. SetStatus is only
// ever called by this package.
type ConnectorRepo interface {
	Connector(id string) (model.Connector, error)
	ByStation(stationID string) ([]model.Connector, error)
	SetStatus(id string, status model.ConnectorStatus) error
}

// Repo persists reservations. Save upserts by reservation ID.
// ActiveByConnector returns nil when the connector has no active hold.
type Repo interface {
	Save(model.Reservation) error
	Get(id string) (model.Reservation, error)
	ActiveByConnector(connectorID string) (*model.Reservation, error)
	Active() ([]model.Reservation, error)
}

const lockShards = 64

// Manager enforces at most one active reservation per connector and
// tracks promised-vs-actual start accuracy.
type Manager struct {
	cfg          Config
	stations     StationRepo
	connectors   ConnectorRepo
	reservations Repo
	recorder     audit.Recorder
	sink         metrics.MetricsSink
	bus          eventbus.EventBus
	log          logger.Logger
	accuracy     *accuracyWindow
	locks        [lockShards]sync.Mutex
	stationLocks [lockShards]sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager wires a reservation manager. Nil recorder, sink or bus
// default to no-ops.
func NewManager(cfg Config, stations StationRepo, connectors ConnectorRepo, reservations Repo,
	recorder audit.Recorder, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if stations == nil || connectors == nil || reservations == nil {
		return nil, fmt.Errorf("reservation: nil repository provided to NewManager")
	}
	cfg.SetDefaults()
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		cfg:          cfg,
		stations:     stations,
		connectors:   connectors,
		reservations: reservations,
		recorder:     recorder,
		sink:         sink,
		bus:          bus,
		log:          log,
		accuracy:     newAccuracyWindow(cfg.AccuracyWindow),
		now:          time.Now,
	}, nil
}

func (m *Manager) lockFor(connectorID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connectorID))
	return &m.locks[h.Sum32()%lockShards]
}

// stationLockFor serializes grants per station. Always acquired before
// the connector lock; nothing takes them in the other order.
func (m *Manager) stationLockFor(stationID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(stationID))
	return &m.stationLocks[h.Sum32()%lockShards]
}

// Reserve grants a hold on the given connector, or on the first
// admissible connector of the station when connectorID is empty.
// Returns ConflictError when the connector already carries an active
// hold and BufferViolationError when granting would breach the
// station's emergency buffer.
func (m *Manager) Reserve(ctx context.Context, stationID, connectorID, userID string, etaMin, promisedMin float64) (model.Reservation, error) {
	if err := validateReserve(userID, etaMin, promisedMin); err != nil {
		return model.Reservation{}, err
	}
	station, err := m.stations.Station(stationID)
	if err != nil {
		return model.Reservation{}, err
	}
	if connectorID != "" {
		return m.reserveConnector(station, connectorID, userID, etaMin, promisedMin)
	}
	conns, err := m.connectors.ByStation(stationID)
	if err != nil {
		return model.Reservation{}, err
	}
	var lastErr error = &model.ConflictError{ConnectorID: stationID}
	for _, c := range conns {
		if c.Status != model.StatusAvailable {
			continue
		}
		res, err := m.reserveConnector(station, c.ID, userID, etaMin, promisedMin)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return model.Reservation{}, lastErr
}

func validateReserve(userID string, etaMin, promisedMin float64) error {
	if userID == "" {
		return &model.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if etaMin < 0 {
		return &model.ValidationError{Field: "eta_min", Reason: "must be non-negative"}
	}
	if promisedMin < 0 {
		return &model.ValidationError{Field: "promised_start_min", Reason: "must be non-negative"}
	}
	return nil
}

func (m *Manager) reserveConnector(station model.Station, connectorID, userID string, etaMin, promisedMin float64) (model.Reservation, error) {
	now := m.now()
	res, lazily, err := m.admit(station, connectorID, userID, etaMin, promisedMin, now)
	if err != nil {
		return model.Reservation{}, err
	}

	if lazily != nil {
		m.emitTransition(*lazily, "expired_lazily", nil, nil)
	}
	promised := promisedMin
	m.recorder.Record(model.Intervention{
		Timestamp:   now,
		Action:      "RESERVE",
		Reason:      "planner_decision",
		StationID:   station.ID,
		ConnectorID: connectorID,
		Promised:    &promised,
	})
	m.emitTransition(res, "granted", &promisedMin, nil)
	m.log.Infof("reserved connector %s at %s for %s until %s", connectorID, station.ID, userID, res.ExpiresAt.Format(time.RFC3339))
	return res, nil
}

// admit runs the count-and-grant step. The station lock makes the
// free-count read and the grant one atomic step per station, so
// concurrent holds on sibling connectors cannot jointly drop the
// station below its emergency buffer. No external I/O happens while
// either lock is held.
func (m *Manager) admit(station model.Station, connectorID, userID string, etaMin, promisedMin float64, now time.Time) (model.Reservation, *model.Reservation, error) {
	sl := m.stationLockFor(station.ID)
	sl.Lock()
	defer sl.Unlock()
	lock := m.lockFor(connectorID)
	lock.Lock()
	defer lock.Unlock()

	conn, err := m.connectors.Connector(connectorID)
	if err != nil {
		return model.Reservation{}, nil, err
	}
	if conn.StationID != station.ID {
		return model.Reservation{}, nil, &model.NotFoundError{Entity: "connector", ID: connectorID}
	}

	var lazily *model.Reservation
	if active, err := m.reservations.ActiveByConnector(connectorID); err != nil {
		return model.Reservation{}, nil, err
	} else if active != nil {
		// Lazy expiry on read: a stale hold does not block a new one.
		if !active.ExpiresAt.After(now) {
			expired, err := m.expireLocked(*active)
			if err != nil {
				return model.Reservation{}, nil, err
			}
			lazily = &expired
			conn.Status = model.StatusAvailable
		} else {
			return model.Reservation{}, nil, &model.ConflictError{ConnectorID: connectorID}
		}
	}

	if conn.Status != model.StatusAvailable {
		return model.Reservation{}, nil, &model.ConflictError{ConnectorID: connectorID}
	}

	conns, err := m.connectors.ByStation(station.ID)
	if err != nil {
		return model.Reservation{}, nil, err
	}
	free := 0
	for _, c := range conns {
		if c.Status == model.StatusAvailable {
			free++
		}
	}
	if free-1 < station.EmergencyBuffer {
		return model.Reservation{}, nil, &model.BufferViolationError{StationID: station.ID, Buffer: station.EmergencyBuffer, Free: free}
	}

	holdMin := promisedMin + m.cfg.GraceMinutes
	if holdMin < m.cfg.MinHoldMinutes {
		holdMin = m.cfg.MinHoldMinutes
	}
	res := model.Reservation{
		ID:          uuid.NewString(),
		StationID:   station.ID,
		ConnectorID: connectorID,
		UserID:      userID,
		ETAMin:      etaMin,
		ExpiresAt:   now.Add(time.Duration(holdMin * float64(time.Minute))),
		PromisedMin: promisedMin,
		State:       model.ReservationActive,
	}
	if err := m.reservations.Save(res); err != nil {
		return model.Reservation{}, nil, err
	}
	if err := m.connectors.SetStatus(connectorID, model.StatusReserved); err != nil {
		// Leave the system in the pre-transition state: no partial
		// reservation survives a failed status flip.
		res.State = model.ReservationCancelled
		_ = m.reservations.Save(res)
		return model.Reservation{}, nil, err
	}
	return res, lazily, nil
}

// expireLocked transitions an active reservation to expired. Callers
// hold the connector lock.
func (m *Manager) expireLocked(res model.Reservation) (model.Reservation, error) {
	next, err := transition(res.State, eventExpire)
	if err != nil {
		return res, err
	}
	res.State = next
	if err := m.reservations.Save(res); err != nil {
		return res, err
	}
	conn, err := m.connectors.Connector(res.ConnectorID)
	if err == nil && conn.Status == model.StatusReserved {
		_ = m.connectors.SetStatus(res.ConnectorID, model.StatusAvailable)
	}
	return res, nil
}

// ExpireSweep transitions every active reservation past its deadline
// to expired and releases its connector. Safe to run concurrently with
// live traffic on other connectors, and idempotent: re-running over an
// already-expired reservation is a no-op.
func (m *Manager) ExpireSweep(now time.Time) int {
	active, err := m.reservations.Active()
	if err != nil {
		m.log.Errorf("expire sweep: %v", err)
		return 0
	}
	expired := 0
	for _, res := range active {
		if res.ExpiresAt.After(now) {
			continue
		}
		lock := m.lockFor(res.ConnectorID)
		lock.Lock()
		current, err := m.reservations.Get(res.ID)
		if err != nil || current.State != model.ReservationActive || current.ExpiresAt.After(now) {
			// Lost the race to a concurrent transition; nothing to release.
			lock.Unlock()
			continue
		}
		done, err := m.expireLocked(current)
		lock.Unlock()
		if err != nil {
			m.log.Errorf("expire %s: %v", res.ID, err)
			continue
		}
		expired++
		m.emitTransition(done, "expired", nil, nil)
	}
	return expired
}

// StartSession fulfils the active reservation on the connector when a
// charging session starts, recording the actual start for accuracy
// tracking.
func (m *Manager) StartSession(ctx context.Context, connectorID string, actualStartMin float64) (model.Reservation, error) {
	if actualStartMin < 0 {
		return model.Reservation{}, &model.ValidationError{Field: "actual_start_min", Reason: "must be non-negative"}
	}
	lock := m.lockFor(connectorID)
	lock.Lock()
	active, err := m.reservations.ActiveByConnector(connectorID)
	if err != nil {
		lock.Unlock()
		return model.Reservation{}, err
	}
	if active == nil {
		lock.Unlock()
		return model.Reservation{}, &model.NotFoundError{Entity: "active reservation for connector", ID: connectorID}
	}
	// Same lazy expiry as Reserve: a lapsed hold cannot be fulfilled,
	// whether or not the sweep has come around yet.
	if !active.ExpiresAt.After(m.now()) {
		expired, err := m.expireLocked(*active)
		lock.Unlock()
		if err != nil {
			return model.Reservation{}, err
		}
		m.emitTransition(expired, "expired_lazily", nil, nil)
		return model.Reservation{}, &model.NotFoundError{Entity: "active reservation for connector", ID: connectorID}
	}
	res := *active
	next, err := transition(res.State, eventFulfill)
	if err != nil {
		lock.Unlock()
		return model.Reservation{}, err
	}
	res.State = next
	res.ActualMin = actualStartMin
	if err := m.reservations.Save(res); err != nil {
		lock.Unlock()
		return model.Reservation{}, err
	}
	if err := m.connectors.SetStatus(connectorID, model.StatusCharging); err != nil {
		lock.Unlock()
		return model.Reservation{}, err
	}
	lock.Unlock()

	m.accuracy.add(res.PromisedMin, actualStartMin)
	if rec, ok := m.sink.(metrics.AccuracyRecorder); ok {
		if err := rec.RecordAccuracyP90(m.accuracy.p90()); err != nil {
			m.log.Errorf("accuracy metrics: %v", err)
		}
	}
	promised, actual := res.PromisedMin, actualStartMin
	m.recorder.Record(model.Intervention{
		Timestamp:   m.now(),
		Action:      "RESERVE",
		Reason:      "fulfilled",
		StationID:   res.StationID,
		ConnectorID: connectorID,
		Promised:    &promised,
		Actual:      &actual,
	})
	m.emitTransition(res, "fulfilled", &promised, &actual)
	return res, nil
}

// Cancel terminates an active reservation on driver or operator
// request and releases its connector.
func (m *Manager) Cancel(ctx context.Context, reservationID string) error {
	res, err := m.reservations.Get(reservationID)
	if err != nil {
		return err
	}
	lock := m.lockFor(res.ConnectorID)
	lock.Lock()
	res, err = m.reservations.Get(reservationID)
	if err != nil {
		lock.Unlock()
		return err
	}
	if res.State.Terminal() {
		// A concurrent sweep or quarantine won the race; the connector
		// was already released exactly once.
		lock.Unlock()
		return fmt.Errorf("reservation %s already %s: %w", reservationID, res.State, model.ErrConflict)
	}
	next, err := transition(res.State, eventCancel)
	if err != nil {
		lock.Unlock()
		return err
	}
	res.State = next
	if err := m.reservations.Save(res); err != nil {
		lock.Unlock()
		return err
	}
	conn, err := m.connectors.Connector(res.ConnectorID)
	if err == nil && conn.Status == model.StatusReserved {
		_ = m.connectors.SetStatus(res.ConnectorID, model.StatusAvailable)
	}
	lock.Unlock()

	m.recorder.Record(model.Intervention{
		Timestamp:   m.now(),
		Action:      "CANCEL",
		Reason:      "requested",
		StationID:   res.StationID,
		ConnectorID: res.ConnectorID,
	})
	m.emitTransition(res, "cancelled", nil, nil)
	return nil
}

// Quarantine pulls a connector from rotation (or returns it) on the
// planner's or an operator's instruction. Any active reservation on a
// quarantined connector is force-expired with reason "quarantined".
func (m *Manager) Quarantine(ctx context.Context, connectorID, action, reason string) (model.Connector, error) {
	if action != ActionQuarantine && action != ActionUnquarantine {
		return model.Connector{}, &model.ValidationError{Field: "action", Reason: "must be QUARANTINE or UNQUARANTINE"}
	}
	lock := m.lockFor(connectorID)
	lock.Lock()
	conn, err := m.connectors.Connector(connectorID)
	if err != nil {
		lock.Unlock()
		return model.Connector{}, err
	}

	var forced *model.Reservation
	switch action {
	case ActionQuarantine:
		if conn.Status == model.StatusCharging {
			lock.Unlock()
			return model.Connector{}, fmt.Errorf("connector %s is charging: %w", connectorID, model.ErrConflict)
		}
		if active, err := m.reservations.ActiveByConnector(connectorID); err == nil && active != nil {
			res := *active
			if next, terr := transition(res.State, eventExpire); terr == nil {
				res.State = next
				if m.reservations.Save(res) == nil {
					forced = &res
				}
			}
		}
		if err := m.connectors.SetStatus(connectorID, model.StatusFaulted); err != nil {
			lock.Unlock()
			return model.Connector{}, err
		}
		conn.Status = model.StatusFaulted
	case ActionUnquarantine:
		if conn.Status == model.StatusCharging || conn.Status == model.StatusReserved {
			lock.Unlock()
			return model.Connector{}, fmt.Errorf("connector %s is %s: %w", connectorID, conn.Status, model.ErrConflict)
		}
		if err := m.connectors.SetStatus(connectorID, model.StatusAvailable); err != nil {
			lock.Unlock()
			return model.Connector{}, err
		}
		conn.Status = model.StatusAvailable
	}
	lock.Unlock()

	if reason == "" {
		reason = "operator_action"
	}
	m.recorder.Record(model.Intervention{
		Timestamp:   m.now(),
		Action:      action,
		Reason:      reason,
		StationID:   conn.StationID,
		ConnectorID: connectorID,
	})
	if forced != nil {
		m.emitTransition(*forced, "quarantined", nil, nil)
	}
	if m.bus != nil {
		m.bus.Publish(events.QuarantineEvent{
			ConnectorID: connectorID,
			StationID:   conn.StationID,
			Quarantined: action == ActionQuarantine,
			Reason:      reason,
			At:          m.now(),
		})
	}
	return conn, nil
}

// AccuracyP90 is the 90th percentile of |actual - promised| start
// times over the rolling fulfilled window, in minutes.
func (m *Manager) AccuracyP90() float64 { return m.accuracy.p90() }

// Run drives the periodic expiry sweep until the context is canceled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.SweepIntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.ExpireSweep(m.now()); n > 0 {
				m.log.Infof("expired %d reservations", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// emitTransition publishes the transition on the bus. Metrics sinks
// observe transitions through the bus bridge, never directly, so each
// transition is counted exactly once.
func (m *Manager) emitTransition(res model.Reservation, reason string, promised, actual *float64) {
	if m.bus == nil {
		return
	}
	ev := events.ReservationEvent{
		ReservationID: res.ID,
		ConnectorID:   res.ConnectorID,
		StationID:     res.StationID,
		State:         res.State,
		Reason:        reason,
		At:            m.now(),
	}
	if promised != nil {
		ev.PromisedMin = *promised
	}
	if actual != nil {
		ev.ActualMin = *actual
	}
	m.bus.Publish(ev)
}
