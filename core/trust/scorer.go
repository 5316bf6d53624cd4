// Package trust converts rolling connector reliability signals into a
// driver-facing badge and an anti-fraud anomaly score. Detection is
// kept separate from enforcement: the scorer only surfaces quarantine
// candidates, it never changes connector state itself.
package trust

import (
	"fmt"
	"strings"

	"github.com/usermihir/Agentic-EV/core/model"
)

// Badge is the A-D reliability rating of a connector.
type Badge string

const (
	BadgeA Badge = "A"
	BadgeB Badge = "B"
	BadgeC Badge = "C"
	BadgeD Badge = "D"
)

// Rank orders badges for comparison, A first.
func (b Badge) Rank() int {
	switch b {
	case BadgeA:
		return 0
	case BadgeB:
		return 1
	case BadgeC:
		return 2
	default:
		return 3
	}
}

// AtLeast reports whether b is as trustworthy as min.
func (b Badge) AtLeast(min Badge) bool { return b.Rank() <= min.Rank() }

// Score bundles the scorer outputs for one connector.
type Score struct {
	Badge               Badge   `json:"trust_badge"`
	Index               float64 `json:"reliability_index"`
	Anomaly             float64 `json:"anomaly_score"`
	Basis               string  `json:"basis,omitempty"`
	QuarantineCandidate bool    `json:"quarantine_candidate"`
}

// Scorer derives badges and anomaly scores from connector signals. It
// is a pure function of its inputs; badges are recomputed on read and
// never persisted as authoritative state.
type Scorer struct {
	cfg Config
}

// NewScorer validates the configuration and returns a scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// repairFactor decays toward 0 as mean time to repair grows.
func (s *Scorer) repairFactor(mttrHours float64) float64 {
	if mttrHours < 0 {
		mttrHours = 0
	}
	return 1 / (1 + mttrHours/s.cfg.MTTRScaleHours)
}

// Reliability computes the composite index
// R = start_success_rate * (1 - soft_fault_rate) * f(mttr_h).
func (s *Scorer) Reliability(c model.Connector) float64 {
	return clamp01(c.StartSuccessRate) * (1 - clamp01(c.SoftFaultRate)) * s.repairFactor(c.MTTRHours)
}

// BadgeFor bands the composite index into A-D.
func (s *Scorer) BadgeFor(c model.Connector) Badge {
	r := s.Reliability(c)
	switch {
	case r >= s.cfg.AMin:
		return BadgeA
	case r >= s.cfg.BMin:
		return BadgeB
	case r >= s.cfg.CMin:
		return BadgeC
	default:
		return BadgeD
	}
}

// AnomalyScore measures how implausible the connector's self-reported
// success rate is given its observed soft faults and repair times. The
// excess of the claimed-vs-inferred divergence over the divergence
// threshold is scaled onto (0,1], so the score grows continuously with
// the divergence and the quarantine threshold selects a strictly
// smaller set than "any nonzero score".
func (s *Scorer) AnomalyScore(c model.Connector) (float64, string) {
	inferred := (1 - clamp01(c.SoftFaultRate)) * s.repairFactor(c.MTTRHours)
	divergence := clamp01(c.StartSuccessRate) - inferred
	if divergence <= s.cfg.DivergenceThreshold {
		return 0, ""
	}
	score := clamp01((divergence - s.cfg.DivergenceThreshold) / (1 - s.cfg.DivergenceThreshold))

	var parts []string
	if c.SoftFaultRate > 0 {
		parts = append(parts, fmt.Sprintf("soft_fault_rate=%.2f", c.SoftFaultRate))
	}
	if s.repairFactor(c.MTTRHours) < 0.9 {
		parts = append(parts, fmt.Sprintf("mttr_h=%.1f", c.MTTRHours))
	}
	basis := fmt.Sprintf("claimed start_success_rate=%.2f diverges from %s by %.2f",
		c.StartSuccessRate, strings.Join(parts, ","), divergence)
	return score, basis
}

// ScoreConnector runs the full evaluation for one connector.
func (s *Scorer) ScoreConnector(c model.Connector) Score {
	anomaly, basis := s.AnomalyScore(c)
	return Score{
		Badge:               s.BadgeFor(c),
		Index:               s.Reliability(c),
		Anomaly:             anomaly,
		Basis:               basis,
		QuarantineCandidate: anomaly >= s.cfg.QuarantineThreshold,
	}
}

// WorstBadge returns the least trustworthy badge in the list, D when
// the list is empty.
func WorstBadge(badges []Badge) Badge {
	worst := BadgeA
	if len(badges) == 0 {
		return BadgeD
	}
	for _, b := range badges {
		if b.Rank() > worst.Rank() {
			worst = b
		}
	}
	return worst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
