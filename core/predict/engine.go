package predict

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/telemetry"
)

// Estimate is the predictor output for one connector, all in minutes.
type Estimate struct {
	P50Wait       float64 `json:"p50_wait"`
	P90Wait       float64 `json:"p90_wait"`
	ExpectedStart float64 `json:"expected_start_min"`
}

// Engine converts a connector's occupancy and service-time history into
// wait quantiles and an expected start time.
type Engine interface {
	Estimate(c model.Connector, stats telemetry.Stats, etaMin float64) Estimate
}

// QueueEngine models the wait as the sum of remaining service times of
// the sessions ahead in queue. Per-session durations are treated as
// log-normal so the convolved tail stays non-negative; the sum is
// approximated by moment matching (Fenton-Wilkinson).
type QueueEngine struct{}

// NewQueueEngine returns the default engine.
func NewQueueEngine() QueueEngine { return QueueEngine{} }

// Estimate implements Engine. Connectors without history fall back to
// type-level default durations rather than failing.
func (QueueEngine) Estimate(c model.Connector, stats telemetry.Stats, etaMin float64) Estimate {
	if etaMin < 0 {
		etaMin = 0
	}
	depth := stats.QueueDepth
	if depth < 0 {
		depth = 0
	}
	// A busy connector with an empty reported queue still has the
	// in-progress session ahead of the driver.
	if depth == 0 && c.Status != model.StatusAvailable {
		depth = 1
	}
	if depth == 0 {
		return Estimate{ExpectedStart: etaMin}
	}

	mean, stddev := stats.DurationMean, stats.DurationStddev
	if stats.SampleCount == 0 || mean <= 0 {
		def := telemetry.DefaultStats(c.Type)
		mean, stddev = def.DurationMean, def.DurationStddev
	}
	if stddev < 0 {
		stddev = 0
	}

	sumMean := float64(depth) * mean
	sumVar := float64(depth) * stddev * stddev

	p50, p90 := lognormQuantiles(sumMean, sumVar)
	return Estimate{
		P50Wait:       p50,
		P90Wait:       p90,
		ExpectedStart: math.Max(etaMin, p50),
	}
}

// lognormQuantiles fits a log-normal to the given mean and variance and
// returns its 0.5 and 0.9 quantiles. A degenerate variance collapses
// both quantiles onto the mean.
func lognormQuantiles(mean, variance float64) (p50, p90 float64) {
	if mean <= 0 {
		return 0, 0
	}
	if variance <= 1e-12 {
		return mean, mean
	}
	sigma2 := math.Log(1 + variance/(mean*mean))
	dist := distuv.LogNormal{
		Mu:    math.Log(mean) - sigma2/2,
		Sigma: math.Sqrt(sigma2),
	}
	return dist.Quantile(0.5), dist.Quantile(0.9)
}
