package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/usermihir/Agentic-EV/core/trust"
)

// Config holds the planner's ranking and presentation thresholds.
type Config struct {
	// MinBadge is the least trustworthy badge the planner will route a
	// driver to.
	MinBadge string `json:"min_badge" yaml:"min_badge"`

	// ColorBands is the "low,high" pair of expected-wait thresholds
	// (minutes) separating green, amber and red.
	ColorBands string `json:"color_bands" yaml:"color_bands"`

	// PartnerMinWaitMin is the minimum p50 wait before partner offers
	// are fetched for a station.
	PartnerMinWaitMin float64 `json:"partner_min_wait_min" yaml:"partner_min_wait_min"`

	// TelemetryTimeoutMS bounds each telemetry lookup; on timeout the
	// planner proceeds with type-level defaults.
	TelemetryTimeoutMS int `json:"telemetry_timeout_ms" yaml:"telemetry_timeout_ms"`

	// PartnerTimeoutMS bounds the partner lookup; offers are additive
	// and a timeout never fails the plan.
	PartnerTimeoutMS int `json:"partner_timeout_ms" yaml:"partner_timeout_ms"`

	// PartnerStations is how many top-ranked stations are enriched
	// with partner offers.
	PartnerStations int `json:"partner_stations" yaml:"partner_stations"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MinBadge == "" {
		c.MinBadge = string(trust.BadgeC)
	}
	if c.ColorBands == "" {
		c.ColorBands = "10,25"
	}
	if c.PartnerMinWaitMin == 0 {
		c.PartnerMinWaitMin = 10
	}
	if c.TelemetryTimeoutMS == 0 {
		c.TelemetryTimeoutMS = 500
	}
	if c.PartnerTimeoutMS == 0 {
		c.PartnerTimeoutMS = 750
	}
	if c.PartnerStations == 0 {
		c.PartnerStations = 2
	}
}

// Validate rejects unusable thresholds.
func (c Config) Validate() error {
	switch trust.Badge(c.MinBadge) {
	case trust.BadgeA, trust.BadgeB, trust.BadgeC, trust.BadgeD:
	default:
		return fmt.Errorf("min_badge must be one of A,B,C,D: %q", c.MinBadge)
	}
	if _, _, err := c.bands(); err != nil {
		return err
	}
	return nil
}

// bands parses the "low,high" color thresholds, falling back to the
// conservative 10/25 split on malformed input.
func (c Config) bands() (low, high float64, err error) {
	parts := strings.Split(c.ColorBands, ",")
	if len(parts) != 2 {
		return 10, 25, fmt.Errorf("color_bands must be \"low,high\": %q", c.ColorBands)
	}
	low, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 10, 25, fmt.Errorf("color_bands low: %w", err)
	}
	high, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 10, 25, fmt.Errorf("color_bands high: %w", err)
	}
	if low <= 0 || high <= low {
		return 10, 25, fmt.Errorf("color_bands must be increasing positives: %q", c.ColorBands)
	}
	return low, high, nil
}
