// Package planner composes the predictor, the trust scorer and the
// reservation manager into a single ranked plan with one recommended
// action per driver request.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/usermihir/Agentic-EV/core/audit"
	"github.com/usermihir/Agentic-EV/core/events"
	"github.com/usermihir/Agentic-EV/core/geo"
	"github.com/usermihir/Agentic-EV/core/logger"
	"github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/predict"
	"github.com/usermihir/Agentic-EV/core/telemetry"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/internal/eventbus"
)

// Request is one driver query.
type Request struct {
	UserID string  `json:"user_id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	SoC    float64 `json:"soc"`

	// ETAMin overrides the per-station travel estimate when positive.
	ETAMin float64 `json:"eta_min,omitempty"`

	// PreferredType restricts candidates to AC or DC when set; the
	// planner may still propose the other tier via SET_PROFILE.
	PreferredType model.ConnectorType `json:"preferred_type,omitempty"`
}

// ConnectorLister reads a station's connectors.
type ConnectorLister interface {
	ByStation(stationID string) ([]model.Connector, error)
}

// Reserver commits holds; implemented by the reservation manager.
type Reserver interface {
	Reserve(ctx context.Context, stationID, connectorID, userID string, etaMin, promisedMin float64) (model.Reservation, error)
}

// PartnerFinder fetches safe-wait offers near a station. Offers are
// purely additive and never affect ranking or action choice.
type PartnerFinder interface {
	NearbyPartners(ctx context.Context, stationID string) ([]model.PartnerOffer, error)
}

// Planner orchestrates a plan request.
type Planner struct {
	cfg        Config
	connectors ConnectorLister
	stats      telemetry.StatsProvider
	engine     predict.Engine
	scorer     *trust.Scorer
	reserver   Reserver
	partners   PartnerFinder
	recorder   audit.Recorder
	sink       metrics.MetricsSink
	bus        eventbus.EventBus
	log        logger.Logger
	now        func() time.Time
}

// New wires a planner. Reserver and PartnerFinder may be nil; the
// planner then never commits holds or fetches offers.
func New(cfg Config, connectors ConnectorLister, stats telemetry.StatsProvider, engine predict.Engine,
	scorer *trust.Scorer, reserver Reserver, partners PartnerFinder,
	recorder audit.Recorder, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Planner, error) {
	if connectors == nil || stats == nil || engine == nil || scorer == nil {
		return nil, fmt.Errorf("planner: nil dependency provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Planner{
		cfg:        cfg,
		connectors: connectors,
		stats:      stats,
		engine:     engine,
		scorer:     scorer,
		reserver:   reserver,
		partners:   partners,
		recorder:   recorder,
		sink:       sink,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}, nil
}

// candidate is one scored connector.
type candidate struct {
	station  model.Station
	conn     model.Connector
	estimate predict.Estimate
	score    trust.Score
	degraded bool
}

// stationResult aggregates the scored connectors of one station.
type stationResult struct {
	station    model.Station
	distanceKm float64
	etaMin     float64
	candidates []candidate
	freeCount  int
}

// Plan evaluates the candidate stations and returns a ranked plan with
// at most one recommended action.
func (p *Planner) Plan(ctx context.Context, req Request, stations []model.Station) (model.Plan, error) {
	started := p.now()
	if req.ETAMin < 0 {
		return model.Plan{}, &model.ValidationError{Field: "eta_min", Reason: "must be non-negative"}
	}
	if req.UserID == "" {
		return model.Plan{}, &model.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	results, degraded := p.scoreStations(ctx, req, stations)

	// Rank: earliest expected start first, trust breaks ties.
	sort.SliceStable(results, func(i, j int) bool {
		bi, bj := results[i].best(), results[j].best()
		switch {
		case bi == nil && bj == nil:
			return results[i].distanceKm < results[j].distanceKm
		case bi == nil:
			return false
		case bj == nil:
			return true
		case bi.estimate.ExpectedStart != bj.estimate.ExpectedStart:
			return bi.estimate.ExpectedStart < bj.estimate.ExpectedStart
		default:
			return bi.score.Badge.Rank() < bj.score.Badge.Rank()
		}
	})

	plan := model.Plan{}
	low, high, _ := p.cfg.bands()
	for _, r := range results {
		plan.Cards = append(plan.Cards, r.card(low, high))
	}

	action, rationale := p.decide(ctx, req, results)
	plan.Action = action
	plan.ActionKind = action.Kind()
	plan.Rationale = rationale

	plan.SafeWaitPartners = p.safeWaitPartners(ctx, results)

	elapsed := p.now().Sub(started)
	candidates := 0
	for _, r := range results {
		candidates += len(r.candidates)
	}
	if p.bus != nil {
		p.bus.Publish(events.PlanEvent{
			Action:     plan.ActionKind,
			Stations:   len(stations),
			Candidates: candidates,
			Elapsed:    elapsed,
			Degraded:   degraded,
			At:         p.now(),
		})
	}
	if err := p.sink.RecordPlan(metrics.PlanEvent{
		Action:     plan.ActionKind,
		Stations:   len(stations),
		Candidates: candidates,
		Degraded:   degraded,
		Elapsed:    elapsed,
		Time:       p.now(),
	}); err != nil {
		p.log.Errorf("plan metrics: %v", err)
	}
	p.log.Debugw("plan assembled", map[string]any{
		"action":     plan.ActionKind,
		"stations":   len(stations),
		"candidates": candidates,
		"degraded":   degraded,
	})
	return plan, nil
}

// scoreStations fans the per-connector scoring out across all
// candidates and joins before ranking. Scoring is side-effect-free so
// every connector runs in parallel.
func (p *Planner) scoreStations(ctx context.Context, req Request, stations []model.Station) ([]stationResult, bool) {
	results := make([]stationResult, len(stations))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		degraded bool
	)
	for i, st := range stations {
		results[i].station = st
		results[i].distanceKm = geo.DistanceKm(req.Lat, req.Lon, st.Lat, st.Lon)
		results[i].etaMin = req.ETAMin
		if results[i].etaMin <= 0 {
			results[i].etaMin = geo.ETAMinutes(req.Lat, req.Lon, st.Lat, st.Lon)
		}
		conns, err := p.connectors.ByStation(st.ID)
		if err != nil {
			p.log.Warnf("station %s connectors: %v", st.ID, err)
			continue
		}
		for _, conn := range conns {
			if conn.Status == model.StatusAvailable {
				results[i].freeCount++
			}
			if conn.Status == model.StatusFaulted {
				continue
			}
			wg.Add(1)
			go func(i int, conn model.Connector, etaMin float64) {
				defer wg.Done()
				cand, degradedOne := p.scoreConnector(ctx, conn, etaMin)
				mu.Lock()
				results[i].candidates = append(results[i].candidates, cand)
				degraded = degraded || degradedOne
				mu.Unlock()
			}(i, conn, results[i].etaMin)
		}
	}
	wg.Wait()
	for i := range results {
		sort.Slice(results[i].candidates, func(a, b int) bool {
			ca, cb := results[i].candidates[a], results[i].candidates[b]
			if ca.estimate.ExpectedStart != cb.estimate.ExpectedStart {
				return ca.estimate.ExpectedStart < cb.estimate.ExpectedStart
			}
			if ca.score.Badge.Rank() != cb.score.Badge.Rank() {
				return ca.score.Badge.Rank() < cb.score.Badge.Rank()
			}
			return ca.conn.ID < cb.conn.ID
		})
	}
	return results, degraded
}

func (p *Planner) scoreConnector(ctx context.Context, conn model.Connector, etaMin float64) (candidate, bool) {
	tctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TelemetryTimeoutMS)*time.Millisecond)
	defer cancel()
	degraded := false
	stats, err := p.stats.Stats(tctx, conn.ID)
	if err != nil {
		// Stale-default data beats a failed plan.
		if !errors.Is(err, model.ErrTimeout) {
			p.log.Warnf("telemetry for %s: %v", conn.ID, err)
		}
		stats = telemetry.DefaultStats(conn.Type)
		degraded = true
	}
	return candidate{
		conn:     conn,
		estimate: p.engine.Estimate(conn, stats, etaMin),
		score:    p.scorer.ScoreConnector(conn),
		degraded: degraded,
	}, degraded
}

// best returns the station's earliest-starting connector that the
// sniffer has not flagged; candidates are already sorted.
func (r stationResult) best() *candidate {
	for i := range r.candidates {
		if !r.candidates[i].score.QuarantineCandidate {
			return &r.candidates[i]
		}
	}
	return nil
}

func (r stationResult) bestWithBadge(min trust.Badge, preferred model.ConnectorType) *candidate {
	for i := range r.candidates {
		c := &r.candidates[i]
		if c.score.QuarantineCandidate || !c.score.Badge.AtLeast(min) {
			continue
		}
		if preferred != "" && c.conn.Type != preferred {
			continue
		}
		return c
	}
	return nil
}

// wouldPick is the connector a naive wait-only ranking would route the
// driver to: no sniffer or trust filtering, only the preferred type.
// Used to decide QUARANTINE recommendations, where the claimed signals
// are exactly what must not be believed.
func (r stationResult) wouldPick(preferred model.ConnectorType) *candidate {
	for i := range r.candidates {
		c := &r.candidates[i]
		if preferred != "" && c.conn.Type != preferred {
			continue
		}
		return c
	}
	return nil
}

func (r stationResult) card(low, high float64) model.StationCard {
	card := model.StationCard{
		StationID:  r.station.ID,
		Name:       r.station.Name,
		DistanceKm: r.distanceKm,
		FreeCount:  r.freeCount,
		Badge:      string(trust.BadgeD),
		Band:       model.BandRed,
	}
	best := r.best()
	if best == nil && len(r.candidates) > 0 {
		best = &r.candidates[0]
	}
	if best == nil {
		return card
	}
	card.ConnectorID = best.conn.ID
	card.Badge = string(best.score.Badge)
	card.P50Wait = best.estimate.P50Wait
	card.P90Wait = best.estimate.P90Wait
	card.ExpectedStart = best.estimate.ExpectedStart
	switch {
	case best.score.QuarantineCandidate || best.score.Badge == trust.BadgeD:
		card.Band = model.BandRed
	case best.estimate.P90Wait <= low && best.score.Badge.AtLeast(trust.BadgeB):
		card.Band = model.BandGreen
	case best.estimate.ExpectedStart <= high:
		card.Band = model.BandAmber
	default:
		card.Band = model.BandRed
	}
	return card
}

// decide picks the single recommended action, trying reservations down
// the ranking on recoverable admission failures.
func (p *Planner) decide(ctx context.Context, req Request, ranked []stationResult) (model.PlanAction, string) {
	minBadge := trust.Badge(p.cfg.MinBadge)

	// A sniffer-flagged connector that would otherwise be routed to is
	// pulled from rotation instead.
	for _, r := range ranked {
		pick := r.wouldPick(req.PreferredType)
		if pick == nil {
			continue
		}
		if pick.score.QuarantineCandidate {
			p.recorder.Record(model.Intervention{
				Timestamp:   p.now(),
				Action:      "QUARANTINE",
				Reason:      pick.score.Basis,
				StationID:   r.station.ID,
				ConnectorID: pick.conn.ID,
			})
			return model.QuarantineAction{
				ConnectorID: pick.conn.ID,
				Score:       pick.score.Anomaly,
				Basis:       pick.score.Basis,
			}, fmt.Sprintf("connector %s looks unreliable: %s", pick.conn.ID, pick.score.Basis)
		}
		break
	}

	// Reserve the earliest admissible connector; conflicts and buffer
	// refusals fall through to the next-ranked candidate.
	if p.reserver != nil {
	stations:
		for _, r := range ranked {
			for i := range r.candidates {
				c := &r.candidates[i]
				if c.score.QuarantineCandidate || !c.score.Badge.AtLeast(minBadge) {
					continue
				}
				if req.PreferredType != "" && c.conn.Type != req.PreferredType {
					continue
				}
				if c.conn.Status != model.StatusAvailable {
					continue
				}
				res, err := p.reserver.Reserve(ctx, r.station.ID, c.conn.ID, req.UserID, r.etaMin, c.estimate.ExpectedStart)
				if err == nil {
					return model.ReserveAction{
						ReservationID: res.ID,
						StationID:     r.station.ID,
						ConnectorID:   c.conn.ID,
						PromisedMin:   c.estimate.ExpectedStart,
					}, fmt.Sprintf("reserved %s at %s, expected start in %.0f min", c.conn.ID, r.station.ID, c.estimate.ExpectedStart)
				}
				if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrBufferViolation) {
					p.log.Debugf("reserve %s refused, trying next: %v", c.conn.ID, err)
					continue
				}
				p.log.Errorf("reserve %s: %v", c.conn.ID, err)
				break stations
			}
		}
	}

	// No connector meets the trust bar at the requested tier; propose
	// a different profile when one would qualify.
	if req.PreferredType != "" {
		for _, r := range ranked {
			if r.bestWithBadge(minBadge, req.PreferredType) != nil {
				continue
			}
			alt := r.bestWithBadge(minBadge, "")
			if alt != nil && alt.conn.Type != req.PreferredType {
				p.recorder.Record(model.Intervention{
					Timestamp:   p.now(),
					Action:      "SET_PROFILE",
					Reason:      fmt.Sprintf("no %s connector at badge %s or better", req.PreferredType, minBadge),
					StationID:   r.station.ID,
					ConnectorID: alt.conn.ID,
				})
				return model.SetProfileAction{
					StationID:   r.station.ID,
					ConnectorID: alt.conn.ID,
					PowerKW:     alt.conn.PowerKW,
				}, fmt.Sprintf("no trusted %s connector nearby; %s at %s qualifies on a %s profile", req.PreferredType, alt.conn.ID, r.station.ID, alt.conn.Type)
			}
		}
	}

	for _, r := range ranked {
		if r.bestWithBadge(minBadge, req.PreferredType) != nil {
			return model.NoneAction{Rationale: "viable connectors exist but none is reservable right now"},
				"viable connectors exist but none is reservable right now"
		}
	}
	return model.NoneAction{Rationale: "no connector within reach meets the minimum trust bar"},
		"no connector within reach meets the minimum trust bar"
}

// safeWaitPartners enriches the top-ranked stations that have a
// non-trivial wait with nearby partner offers.
func (p *Planner) safeWaitPartners(ctx context.Context, ranked []stationResult) []model.PartnerOffer {
	if p.partners == nil {
		return nil
	}
	var offers []model.PartnerOffer
	fetched := 0
	for _, r := range ranked {
		if fetched >= p.cfg.PartnerStations {
			break
		}
		best := r.best()
		if best == nil || best.estimate.P50Wait < p.cfg.PartnerMinWaitMin {
			continue
		}
		fetched++
		pctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.PartnerTimeoutMS)*time.Millisecond)
		got, err := p.partners.NearbyPartners(pctx, r.station.ID)
		cancel()
		if err != nil {
			p.log.Warnf("partners for %s: %v", r.station.ID, err)
			continue
		}
		offers = append(offers, got...)
	}
	return offers
}
