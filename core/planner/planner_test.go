package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/predict"
	"github.com/usermihir/Agentic-EV/core/telemetry"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/infra/store"
)

type stubStats struct {
	stats map[string]telemetry.Stats
	err   error
}

func (s stubStats) Stats(_ context.Context, connectorID string) (telemetry.Stats, error) {
	if s.err != nil {
		return telemetry.Stats{}, s.err
	}
	st, ok := s.stats[connectorID]
	if !ok {
		return telemetry.Stats{}, nil
	}
	return st, nil
}

type stubReserver struct {
	errs  map[string]error
	calls []string
}

func (r *stubReserver) Reserve(_ context.Context, stationID, connectorID, userID string, etaMin, promisedMin float64) (model.Reservation, error) {
	r.calls = append(r.calls, connectorID)
	if err := r.errs[connectorID]; err != nil {
		return model.Reservation{}, err
	}
	return model.Reservation{
		ID:          "res-" + connectorID,
		StationID:   stationID,
		ConnectorID: connectorID,
		UserID:      userID,
		ETAMin:      etaMin,
		PromisedMin: promisedMin,
		State:       model.ReservationActive,
	}, nil
}

type stubPartners struct {
	offers map[string][]model.PartnerOffer
	calls  []string
}

func (p *stubPartners) NearbyPartners(_ context.Context, stationID string) ([]model.PartnerOffer, error) {
	p.calls = append(p.calls, stationID)
	return p.offers[stationID], nil
}

func newScorer(t *testing.T) *trust.Scorer {
	t.Helper()
	s, err := trust.NewScorer(trust.Config{})
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func newPlanner(t *testing.T, repo *store.Memory, stats telemetry.StatsProvider, reserver Reserver, partners PartnerFinder) *Planner {
	t.Helper()
	p, err := New(Config{}, repo, stats, predict.NewQueueEngine(), newScorer(t), reserver, partners, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func seedStation(repo *store.Memory, id string, buffer int, conns ...model.Connector) {
	repo.PutStation(model.Station{ID: id, Name: id, EmergencyBuffer: buffer})
	for _, c := range conns {
		c.StationID = id
		repo.PutConnector(c)
	}
}

func TestPlanIdleStationReserves(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST002", 0,
		model.Connector{ID: "ST002-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
		model.Connector{ID: "ST002-2", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.95, SoftFaultRate: 0.05, MTTRHours: 2},
	)
	reserver := &stubReserver{}
	p := newPlanner(t, repo, stubStats{}, reserver, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 10}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Cards) != 1 {
		t.Fatalf("expected one card, got %d", len(plan.Cards))
	}
	card := plan.Cards[0]
	if card.ExpectedStart != 10 {
		t.Fatalf("idle connectors should start at eta, got %f", card.ExpectedStart)
	}
	if card.Badge != "A" {
		t.Fatalf("top connector should carry badge A, got %s", card.Badge)
	}
	if plan.ActionKind != "RESERVE" {
		t.Fatalf("expected RESERVE, got %s (%s)", plan.ActionKind, plan.Rationale)
	}
	act, ok := plan.Action.(model.ReserveAction)
	if !ok {
		t.Fatalf("action type %T", plan.Action)
	}
	if act.ConnectorID != "ST002-1" {
		t.Fatalf("should reserve the badge-A connector, got %s", act.ConnectorID)
	}
	if act.PromisedMin != 10 {
		t.Fatalf("promised start should equal expected start, got %f", act.PromisedMin)
	}
}

func TestPlanQuarantinesSnifferCandidate(t *testing.T) {
	repo := store.NewMemory()
	// The flagged connector claims near-perfect starts while its soft
	// fault rate and repair times say otherwise; it would top the
	// ranking if the sniffer were ignored.
	seedStation(repo, "ST007", 0,
		model.Connector{ID: "ST007-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.30, MTTRHours: 30},
		model.Connector{ID: "ST007-2", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusCharging,
			StartSuccessRate: 0.97, SoftFaultRate: 0.02, MTTRHours: 1},
	)
	reserver := &stubReserver{}
	p := newPlanner(t, repo, stubStats{}, reserver, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 5}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ActionKind != "QUARANTINE" {
		t.Fatalf("expected QUARANTINE, got %s (%s)", plan.ActionKind, plan.Rationale)
	}
	act := plan.Action.(model.QuarantineAction)
	if act.ConnectorID != "ST007-1" {
		t.Fatalf("wrong quarantine target: %s", act.ConnectorID)
	}
	if !strings.Contains(act.Basis, "soft_fault_rate") {
		t.Fatalf("basis should name the diverging signal, got %q", act.Basis)
	}
	if len(reserver.calls) != 0 {
		t.Fatalf("no reservation should be attempted, got %v", reserver.calls)
	}
}

func TestPlanRetriesNextOnConflict(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST001", 0,
		model.Connector{ID: "ST001-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
		model.Connector{ID: "ST001-2", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	reserver := &stubReserver{errs: map[string]error{
		"ST001-1": &model.ConflictError{ConnectorID: "ST001-1"},
	}}
	p := newPlanner(t, repo, stubStats{}, reserver, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 8}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ActionKind != "RESERVE" {
		t.Fatalf("expected RESERVE after retry, got %s", plan.ActionKind)
	}
	if got := plan.Action.(model.ReserveAction).ConnectorID; got != "ST001-2" {
		t.Fatalf("should fall through to the next connector, got %s", got)
	}
	if len(reserver.calls) != 2 {
		t.Fatalf("expected two attempts, got %v", reserver.calls)
	}
}

func TestPlanSetProfileWhenPreferredTierUntrusted(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST003", 0,
		model.Connector{ID: "ST003-dc", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.40, SoftFaultRate: 0.30, MTTRHours: 48},
		model.Connector{ID: "ST003-ac", Type: model.ConnectorAC, PowerKW: 22, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	reserver := &stubReserver{}
	p := newPlanner(t, repo, stubStats{}, reserver, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 5, PreferredType: model.ConnectorDC}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ActionKind != "SET_PROFILE" {
		t.Fatalf("expected SET_PROFILE, got %s (%s)", plan.ActionKind, plan.Rationale)
	}
	act := plan.Action.(model.SetProfileAction)
	if act.ConnectorID != "ST003-ac" {
		t.Fatalf("should propose the trusted AC connector, got %s", act.ConnectorID)
	}
	if act.PowerKW != 22 {
		t.Fatalf("profile power %f", act.PowerKW)
	}
}

func TestPlanNoneWhenNothingTrusted(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST004", 0,
		model.Connector{ID: "ST004-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.30, SoftFaultRate: 0.40, MTTRHours: 72},
	)
	p := newPlanner(t, repo, stubStats{}, &stubReserver{}, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 5}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ActionKind != "NONE" {
		t.Fatalf("expected NONE, got %s", plan.ActionKind)
	}
	if plan.Rationale == "" {
		t.Fatal("NONE must carry a rationale")
	}
}

func TestPlanDegradedTelemetryStillPlans(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST005", 0,
		model.Connector{ID: "ST005-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusCharging,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	p := newPlanner(t, repo, stubStats{err: model.ErrTimeout}, nil, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 5}, repo.Stations())
	if err != nil {
		t.Fatalf("degraded telemetry must not fail the plan: %v", err)
	}
	if len(plan.Cards) != 1 {
		t.Fatalf("cards: %d", len(plan.Cards))
	}
	// A charging connector with default DC stats carries a real wait.
	if plan.Cards[0].P50Wait <= 0 {
		t.Fatalf("expected a fallback wait estimate, got %f", plan.Cards[0].P50Wait)
	}
}

func TestPlanPartnerOffersOnlyForLongWaits(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST-busy", 0,
		model.Connector{ID: "busy-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusCharging,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	seedStation(repo, "ST-idle", 0,
		model.Connector{ID: "idle-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	stats := stubStats{stats: map[string]telemetry.Stats{
		"busy-1": {DurationMean: 30, DurationStddev: 8, QueueDepth: 2, SampleCount: 40},
	}}
	partners := &stubPartners{offers: map[string][]model.PartnerOffer{
		"ST-busy": {{PartnerID: "cafe-1", Name: "Corner Cafe", Kind: "cafe", DistanceM: 120, DurationMin: 25}},
	}}
	p := newPlanner(t, repo, stats, nil, partners)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 2}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.SafeWaitPartners) != 1 || plan.SafeWaitPartners[0].PartnerID != "cafe-1" {
		t.Fatalf("offers: %+v", plan.SafeWaitPartners)
	}
	for _, called := range partners.calls {
		if called == "ST-idle" {
			t.Fatal("idle station should not trigger a partner lookup")
		}
	}
}

func TestPlanColorBands(t *testing.T) {
	repo := store.NewMemory()
	seedStation(repo, "ST-green", 0,
		model.Connector{ID: "g-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusAvailable,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	seedStation(repo, "ST-red", 0,
		model.Connector{ID: "r-1", Type: model.ConnectorDC, PowerKW: 150, Status: model.StatusCharging,
			StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5},
	)
	stats := stubStats{stats: map[string]telemetry.Stats{
		"r-1": {DurationMean: 40, DurationStddev: 10, QueueDepth: 3, SampleCount: 50},
	}}
	p := newPlanner(t, repo, stats, nil, nil)

	plan, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: 1}, repo.Stations())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	bands := map[string]model.ColorBand{}
	for _, c := range plan.Cards {
		bands[c.StationID] = c.Band
	}
	if bands["ST-green"] != model.BandGreen {
		t.Fatalf("idle badge-A station should be green, got %s", bands["ST-green"])
	}
	if bands["ST-red"] != model.BandRed {
		t.Fatalf("three deep sessions of 40 min should be red, got %s", bands["ST-red"])
	}
}

func TestPlanValidatesRequest(t *testing.T) {
	p := newPlanner(t, store.NewMemory(), stubStats{}, nil, nil)
	if _, err := p.Plan(context.Background(), Request{UserID: "u1", ETAMin: -1}, nil); err == nil {
		t.Fatal("negative eta must be rejected")
	}
	if _, err := p.Plan(context.Background(), Request{ETAMin: 1}, nil); err == nil {
		t.Fatal("missing user must be rejected")
	}
}
