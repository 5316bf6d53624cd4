package model

import "fmt"

// ConnectorType distinguishes AC and DC charging hardware.
type ConnectorType string

const (
	ConnectorAC ConnectorType = "AC"
	ConnectorDC ConnectorType = "DC"
)

// ConnectorStatus is the operational state of a connector.
type ConnectorStatus string

const (
	StatusAvailable ConnectorStatus = "available"
	StatusCharging  ConnectorStatus = "charging"
	StatusReserved  ConnectorStatus = "reserved"
	StatusFaulted   ConnectorStatus = "faulted"
)

// Connector represents a single charging outlet at a station.
type Connector struct {
	ID        string          `json:"connector_id"`
	StationID string          `json:"station_id"`
	Type      ConnectorType   `json:"type"`
	PowerKW   float64         `json:"kw"`
	Status    ConnectorStatus `json:"status"`

	// Rolling reliability signals maintained by the telemetry store.
	StartSuccessRate float64 `json:"start_success_rate"` // [0,1]
	SoftFaultRate    float64 `json:"soft_fault_rate"`    // [0,1]
	MTTRHours        float64 `json:"mttr_h"`
}

// Validate checks that the reliability signals are within range.
func (c Connector) Validate() error {
	if c.StartSuccessRate < 0 || c.StartSuccessRate > 1 {
		return fmt.Errorf("start_success_rate out of range: %f", c.StartSuccessRate)
	}
	if c.SoftFaultRate < 0 || c.SoftFaultRate > 1 {
		return fmt.Errorf("soft_fault_rate out of range: %f", c.SoftFaultRate)
	}
	if c.MTTRHours < 0 {
		return fmt.Errorf("mttr_h must be non-negative: %f", c.MTTRHours)
	}
	return nil
}
