// Package scenarios runs YAML-described network states through the
// full planning stack and checks the recommended action. Scenarios
// double as executable documentation of the guardian's decisions.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/usermihir/Agentic-EV/core/model"
)

type ConnectorDef struct {
	ID      string  `yaml:"id"`
	Type    string  `yaml:"type"`
	PowerKW float64 `yaml:"kw"`
	Status  string  `yaml:"status"`

	StartSuccessRate float64 `yaml:"start_success_rate"`
	SoftFaultRate    float64 `yaml:"soft_fault_rate"`
	MTTRHours        float64 `yaml:"mttr_h"`

	QueueDepth int       `yaml:"queue_depth,omitempty"`
	Sessions   []float64 `yaml:"sessions,omitempty"`
}

func (c ConnectorDef) ToModel(stationID string) model.Connector {
	status := model.ConnectorStatus(c.Status)
	if status == "" {
		status = model.StatusAvailable
	}
	return model.Connector{
		ID:               c.ID,
		StationID:        stationID,
		Type:             model.ConnectorType(c.Type),
		PowerKW:          c.PowerKW,
		Status:           status,
		StartSuccessRate: c.StartSuccessRate,
		SoftFaultRate:    c.SoftFaultRate,
		MTTRHours:        c.MTTRHours,
	}
}

type StationDef struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Lat             float64        `yaml:"lat"`
	Lon             float64        `yaml:"lon"`
	EmergencyBuffer int            `yaml:"emergency_buffer"`
	Connectors      []ConnectorDef `yaml:"connectors"`
}

func (s StationDef) ToModel() model.Station {
	return model.Station{
		ID:              s.ID,
		Name:            s.Name,
		Lat:             s.Lat,
		Lon:             s.Lon,
		EmergencyBuffer: s.EmergencyBuffer,
	}
}

type RequestDef struct {
	UserID        string  `yaml:"user_id"`
	Lat           float64 `yaml:"lat"`
	Lon           float64 `yaml:"lon"`
	ETAMin        float64 `yaml:"eta_min"`
	PreferredType string  `yaml:"preferred_type,omitempty"`
}

type Expected struct {
	Action      string `yaml:"action"`
	StationID   string `yaml:"station_id,omitempty"`
	ConnectorID string `yaml:"connector_id,omitempty"`
	TopBand     string `yaml:"top_band,omitempty"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Stations    []StationDef `yaml:"stations"`
	// Reserved lists connector IDs that already carry an active hold
	// before the request runs.
	Reserved []string   `yaml:"reserved,omitempty"`
	Request  RequestDef `yaml:"request"`
	Expected Expected   `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
