package reservation

// Config holds reservation manager tunables.
type Config struct {
	// MinHoldMinutes is the minimum reservation lifetime.
	MinHoldMinutes float64 `json:"min_hold_minutes" yaml:"min_hold_minutes"`

	// GraceMinutes extends the hold past the promised start before it
	// expires: expires_at = now + max(min_hold, promised + grace).
	GraceMinutes float64 `json:"grace_minutes" yaml:"grace_minutes"`

	// AccuracyWindow bounds the rolling sample of fulfilled
	// reservations feeding the p90 accuracy metric.
	AccuracyWindow int `json:"accuracy_window" yaml:"accuracy_window"`

	// SweepIntervalSeconds drives the periodic expiry sweep.
	SweepIntervalSeconds int `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MinHoldMinutes == 0 {
		c.MinHoldMinutes = 15
	}
	if c.GraceMinutes == 0 {
		c.GraceMinutes = 10
	}
	if c.AccuracyWindow == 0 {
		c.AccuracyWindow = 200
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = 30
	}
}
