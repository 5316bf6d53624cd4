// Package store provides the in-memory repository backing the guardian
// core. The core depends only on the repository operations, not on any
// storage technology; this implementation keeps everything in
// RWMutex-guarded maps.
package store

import (
	"sort"
	"sync"

	"github.com/usermihir/Agentic-EV/core/model"
)

// Memory holds stations, connectors and reservations.
type Memory struct {
	mu           sync.RWMutex
	stations     map[string]model.Station
	connectors   map[string]model.Connector
	reservations map[string]model.Reservation
}

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{
		stations:     map[string]model.Station{},
		connectors:   map[string]model.Connector{},
		reservations: map[string]model.Reservation{},
	}
}

// PutStation upserts a station.
func (m *Memory) PutStation(s model.Station) {
	m.mu.Lock()
	m.stations[s.ID] = s
	m.mu.Unlock()
}

// PutConnector upserts a connector.
func (m *Memory) PutConnector(c model.Connector) {
	m.mu.Lock()
	m.connectors[c.ID] = c
	m.mu.Unlock()
}

// Station returns the station or a NotFoundError.
func (m *Memory) Station(id string) (model.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stations[id]
	if !ok {
		return model.Station{}, &model.NotFoundError{Entity: "station", ID: id}
	}
	return s, nil
}

// Stations lists all stations ordered by ID.
func (m *Memory) Stations() []model.Station {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Station, 0, len(m.stations))
	for _, s := range m.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connector returns the connector or a NotFoundError.
func (m *Memory) Connector(id string) (model.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connectors[id]
	if !ok {
		return model.Connector{}, &model.NotFoundError{Entity: "connector", ID: id}
	}
	return c, nil
}

// ByStation lists a station's connectors ordered by ID.
func (m *Memory) ByStation(stationID string) ([]model.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Connector
	for _, c := range m.connectors {
		if c.StationID == stationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetStatus flips a connector's operational status.
func (m *Memory) SetStatus(id string, status model.ConnectorStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connectors[id]
	if !ok {
		return &model.NotFoundError{Entity: "connector", ID: id}
	}
	c.Status = status
	m.connectors[id] = c
	return nil
}

// UpdateSignals replaces a connector's rolling reliability signals.
func (m *Memory) UpdateSignals(id string, success, softFault, mttrHours float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connectors[id]
	if !ok {
		return &model.NotFoundError{Entity: "connector", ID: id}
	}
	c.StartSuccessRate = success
	c.SoftFaultRate = softFault
	c.MTTRHours = mttrHours
	m.connectors[id] = c
	return nil
}

// Save upserts a reservation by ID.
func (m *Memory) Save(r model.Reservation) error {
	m.mu.Lock()
	m.reservations[r.ID] = r
	m.mu.Unlock()
	return nil
}

// Get returns the reservation or a NotFoundError.
func (m *Memory) Get(id string) (model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return model.Reservation{}, &model.NotFoundError{Entity: "reservation", ID: id}
	}
	return r, nil
}

// ActiveByConnector returns the connector's active reservation, nil
// when there is none.
func (m *Memory) ActiveByConnector(connectorID string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reservations {
		if r.ConnectorID == connectorID && r.State == model.ReservationActive {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

// Active lists all active reservations.
func (m *Memory) Active() ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Reservation
	for _, r := range m.reservations {
		if r.State == model.ReservationActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reservations lists every reservation regardless of state.
func (m *Memory) Reservations() []model.Reservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
