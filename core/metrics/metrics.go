// Package metrics defines the observability contract of the guardian
// core. Concrete sinks live in infra/metrics.
package metrics

import "time"

// PlanEvent summarises one planner run.
type PlanEvent struct {
	Action     string
	Stations   int
	Candidates int
	Degraded   bool
	Elapsed    time.Duration
	Time       time.Time
}

// ReservationEvent captures one reservation transition.
type ReservationEvent struct {
	ReservationID string
	StationID     string
	ConnectorID   string
	State         string
	Reason        string
	PromisedMin   float64
	ActualMin     float64
	Time          time.Time
}

// QuarantineEvent captures a connector entering or leaving quarantine.
type QuarantineEvent struct {
	ConnectorID string
	StationID   string
	Quarantined bool
	Reason      string
	Time        time.Time
}

// MetricsSink records guardian events for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
	RecordReservation(ev ReservationEvent) error
}

// QuarantineRecorder is implemented by sinks that track quarantines.
type QuarantineRecorder interface {
	RecordQuarantine(ev QuarantineEvent) error
}

// AccuracyRecorder is implemented by sinks exposing the rolling
// promised-vs-actual accuracy metric.
type AccuracyRecorder interface {
	RecordAccuracyP90(minutes float64) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error               { return nil }
func (NopSink) RecordReservation(ReservationEvent) error { return nil }
func (NopSink) RecordQuarantine(QuarantineEvent) error   { return nil }
func (NopSink) RecordAccuracyP90(float64) error          { return nil }

// Config selects and parameterises the enabled sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusPort    int    `json:"prometheus_port" yaml:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled" yaml:"influx_enabled"`
	InfluxURL         string `json:"influx_url" yaml:"influx_url"`
	InfluxToken       string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg         string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket      string `json:"influx_bucket" yaml:"influx_bucket"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == 0 {
		c.PrometheusPort = 2112
	}
}
