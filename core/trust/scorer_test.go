package trust

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usermihir/Agentic-EV/core/model"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(Config{})
	require.NoError(t, err)
	return s
}

func TestBadgeBands(t *testing.T) {
	s := newScorer(t)
	cases := []struct {
		success, fault, mttr float64
		want                 Badge
	}{
		{1.0, 0.0, 0.0, BadgeA},
		{0.97, 0.05, 0.5, BadgeB},
		{0.90, 0.15, 2, BadgeC},
		{0.60, 0.40, 48, BadgeD},
	}
	for _, c := range cases {
		conn := model.Connector{StartSuccessRate: c.success, SoftFaultRate: c.fault, MTTRHours: c.mttr}
		if got := s.BadgeFor(conn); got != c.want {
			t.Fatalf("badge(%v) = %s, want %s (R=%.3f)", c, got, c.want, s.Reliability(conn))
		}
	}
}

func TestBadgeMonotoneInSuccessRate(t *testing.T) {
	s := newScorer(t)
	prev := BadgeD
	for rate := 0.0; rate <= 1.0; rate += 0.01 {
		c := model.Connector{StartSuccessRate: rate, SoftFaultRate: 0.05, MTTRHours: 3}
		got := s.BadgeFor(c)
		if got.Rank() > prev.Rank() {
			t.Fatalf("badge worsened from %s to %s at rate %.2f", prev, got, rate)
		}
		prev = got
	}
}

func TestMTTRDepressesTrust(t *testing.T) {
	s := newScorer(t)
	quick := model.Connector{StartSuccessRate: 0.99, SoftFaultRate: 0, MTTRHours: 0}
	slow := model.Connector{StartSuccessRate: 0.99, SoftFaultRate: 0, MTTRHours: 100}
	if s.Reliability(slow) >= s.Reliability(quick) {
		t.Fatalf("long mttr should depress the index")
	}
	if s.BadgeFor(slow) == BadgeA {
		t.Fatalf("badge A despite 100h repair time")
	}
}

func TestSnifferFlagsImplausibleClaims(t *testing.T) {
	s := newScorer(t)
	// Claims near-perfect starts, but telemetry shows frequent soft
	// faults and long repairs. The raw badge may still compute
	// favourably.
	c := model.Connector{StartSuccessRate: 0.99, SoftFaultRate: 0.30, MTTRHours: 30}
	sc := s.ScoreConnector(c)
	require.True(t, sc.QuarantineCandidate, "anomaly %.3f basis %q", sc.Anomaly, sc.Basis)
	require.True(t, strings.Contains(sc.Basis, "soft_fault_rate"), "basis must name the diverging signal: %q", sc.Basis)
}

func TestSnifferScoreBelowQuarantineBar(t *testing.T) {
	s := newScorer(t)
	// Divergence just past the threshold scores low: suspicious enough
	// to surface, not enough to pull from rotation.
	c := model.Connector{StartSuccessRate: 0.90, SoftFaultRate: 0.30, MTTRHours: 12}
	sc := s.ScoreConnector(c)
	if sc.Anomaly <= 0 || sc.Anomaly >= 0.5 {
		t.Fatalf("anomaly %.3f, want in (0, 0.5)", sc.Anomaly)
	}
	if sc.QuarantineCandidate {
		t.Fatalf("mild divergence must not be a quarantine candidate")
	}
	if sc.Basis == "" {
		t.Fatalf("nonzero score needs a basis")
	}
}

func TestSnifferQuietOnConsistentConnector(t *testing.T) {
	s := newScorer(t)
	c := model.Connector{StartSuccessRate: 0.93, SoftFaultRate: 0.05, MTTRHours: 2}
	score, basis := s.AnomalyScore(c)
	if score != 0 || basis != "" {
		t.Fatalf("consistent signals should not be flagged: %.3f %q", score, basis)
	}
}

func TestSnifferBasisNamesMTTR(t *testing.T) {
	s := newScorer(t)
	c := model.Connector{StartSuccessRate: 1.0, SoftFaultRate: 0.10, MTTRHours: 72}
	_, basis := s.AnomalyScore(c)
	require.Contains(t, basis, "mttr_h")
}

func TestConfigValidation(t *testing.T) {
	bad := Config{AMin: 0.8, BMin: 0.85, CMin: 0.7, MTTRScaleHours: 24, DivergenceThreshold: 0.25, QuarantineThreshold: 0.5}
	if _, err := NewScorer(bad); err == nil {
		t.Fatalf("non-decreasing bands must be rejected")
	}
	bad = Config{AMin: 0.95, BMin: 0.85, CMin: 0.7, MTTRScaleHours: -1, DivergenceThreshold: 0.25, QuarantineThreshold: 0.5}
	if _, err := NewScorer(bad); err == nil {
		t.Fatalf("negative mttr scale must be rejected")
	}
}

func TestWorstBadge(t *testing.T) {
	if WorstBadge(nil) != BadgeD {
		t.Fatalf("empty list defaults to D")
	}
	if WorstBadge([]Badge{BadgeA, BadgeC, BadgeB}) != BadgeC {
		t.Fatalf("worst of A,C,B is C")
	}
}
