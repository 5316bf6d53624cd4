package trust

import "fmt"

// Config holds the operator-tunable scoring thresholds.
type Config struct {
	// Badge bands over the composite reliability index. Must be
	// strictly decreasing; anything below CMin is badge D.
	AMin float64 `json:"a_min" yaml:"a_min"`
	BMin float64 `json:"b_min" yaml:"b_min"`
	CMin float64 `json:"c_min" yaml:"c_min"`

	// MTTRScaleHours controls how fast long repair times depress
	// trust: f(mttr) = 1 / (1 + mttr/scale).
	MTTRScaleHours float64 `json:"mttr_scale_hours" yaml:"mttr_scale_hours"`

	// DivergenceThreshold is the minimum claimed-vs-inferred gap for a
	// connector to register as anomalous at all.
	DivergenceThreshold float64 `json:"divergence_threshold" yaml:"divergence_threshold"`

	// QuarantineThreshold is the anomaly score above which a connector
	// is surfaced to the planner as a quarantine candidate.
	QuarantineThreshold float64 `json:"quarantine_threshold" yaml:"quarantine_threshold"`
}

// SetDefaults fills zero values with defensible defaults.
func (c *Config) SetDefaults() {
	if c.AMin == 0 {
		c.AMin = 0.95
	}
	if c.BMin == 0 {
		c.BMin = 0.85
	}
	if c.CMin == 0 {
		c.CMin = 0.70
	}
	if c.MTTRScaleHours == 0 {
		c.MTTRScaleHours = 24
	}
	if c.DivergenceThreshold == 0 {
		c.DivergenceThreshold = 0.25
	}
	if c.QuarantineThreshold == 0 {
		c.QuarantineThreshold = 0.5
	}
}

// Validate rejects band configurations that are not strictly
// decreasing or thresholds outside [0,1].
func (c Config) Validate() error {
	if !(c.AMin > c.BMin && c.BMin > c.CMin) {
		return fmt.Errorf("badge bands must be strictly decreasing: a=%.2f b=%.2f c=%.2f", c.AMin, c.BMin, c.CMin)
	}
	if c.CMin <= 0 || c.AMin >= 1 {
		return fmt.Errorf("badge bands must lie in (0,1): a=%.2f c=%.2f", c.AMin, c.CMin)
	}
	if c.MTTRScaleHours <= 0 {
		return fmt.Errorf("mttr_scale_hours must be positive")
	}
	if c.DivergenceThreshold <= 0 || c.DivergenceThreshold >= 1 {
		return fmt.Errorf("divergence_threshold must lie in (0,1)")
	}
	if c.QuarantineThreshold <= 0 || c.QuarantineThreshold > 1 {
		return fmt.Errorf("quarantine_threshold must lie in (0,1]")
	}
	return nil
}
