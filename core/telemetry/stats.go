package telemetry

import (
	"context"

	"github.com/usermihir/Agentic-EV/core/model"
)

// Stats is the rolling per-connector summary read by the predictor.
type Stats struct {
	DurationMean   float64 `json:"duration_mean"`   // minutes
	DurationStddev float64 `json:"duration_stddev"` // minutes
	QueueDepth     int     `json:"queue_depth"`
	SampleCount    int     `json:"sample_count"`
}

// Type-level session duration defaults in minutes, used when a
// connector has no history of its own.
const (
	DefaultSessionMinDC = 28
	DefaultSessionMinAC = 75
)

// DefaultStats returns the fallback summary for a connector type.
func DefaultStats(t model.ConnectorType) Stats {
	mean := float64(DefaultSessionMinAC)
	if t == model.ConnectorDC {
		mean = DefaultSessionMinDC
	}
	// Without history assume a wide spread: half the mean.
	return Stats{DurationMean: mean, DurationStddev: mean / 2}
}

// StatsProvider reads rolling telemetry for a connector. Implementations
// must respect the context deadline; the planner never waits past it.
type StatsProvider interface {
	Stats(ctx context.Context, connectorID string) (Stats, error)
}
