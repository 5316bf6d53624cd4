package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/planner"
	"github.com/usermihir/Agentic-EV/core/predict"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/core/telemetry"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/infra/metrics"
	"github.com/usermihir/Agentic-EV/infra/store"
)

// RunScenario assembles the real store, scorer, predictor and
// reservation manager, replays the scenario's network state, runs the
// request and checks the recommended action.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	repo := store.NewMemory()
	rolling := telemetry.NewRollingStats()
	for _, st := range sc.Stations {
		repo.PutStation(st.ToModel())
		for _, c := range st.Connectors {
			repo.PutConnector(c.ToModel(st.ID))
			for _, d := range c.Sessions {
				rolling.RecordSession(c.ID, d)
			}
			if c.QueueDepth > 0 {
				rolling.SetQueueDepth(c.ID, c.QueueDepth)
			}
		}
	}

	scorer, err := trust.NewScorer(trust.Config{})
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	manager, err := reservation.NewManager(reservation.Config{}, repo, repo, repo, nil, sink, nil, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	ctx := context.Background()
	for _, connID := range sc.Reserved {
		conn, err := repo.Connector(connID)
		if err != nil {
			t.Fatalf("reserved connector %s: %v", connID, err)
		}
		if _, err := manager.Reserve(ctx, conn.StationID, connID, "prior-driver", 5, 5); err != nil {
			t.Fatalf("pre-reserve %s: %v", connID, err)
		}
	}

	pl, err := planner.New(planner.Config{}, repo, telemetry.BoundedProvider(rolling),
		predict.NewQueueEngine(), scorer, manager, nil, nil, sink, nil, nil)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}

	req := planner.Request{
		UserID:        sc.Request.UserID,
		Lat:           sc.Request.Lat,
		Lon:           sc.Request.Lon,
		ETAMin:        sc.Request.ETAMin,
		PreferredType: model.ConnectorType(sc.Request.PreferredType),
	}
	plan, err := pl.Plan(ctx, req, repo.Stations())
	if err != nil {
		t.Fatalf("scenario %s: plan: %v", sc.Name, err)
	}

	if plan.ActionKind != sc.Expected.Action {
		t.Fatalf("scenario %s: expected action %s, got %s (%s)", sc.Name, sc.Expected.Action, plan.ActionKind, plan.Rationale)
	}
	switch act := plan.Action.(type) {
	case model.ReserveAction:
		checkTarget(t, sc, act.StationID, act.ConnectorID)
	case model.QuarantineAction:
		checkTarget(t, sc, "", act.ConnectorID)
	case model.SetProfileAction:
		checkTarget(t, sc, act.StationID, act.ConnectorID)
	}
	if sc.Expected.TopBand != "" {
		if len(plan.Cards) == 0 {
			t.Fatalf("scenario %s: expected top band %s but plan has no cards", sc.Name, sc.Expected.TopBand)
		}
		if got := string(plan.Cards[0].Band); got != sc.Expected.TopBand {
			t.Errorf("scenario %s: expected top band %s, got %s", sc.Name, sc.Expected.TopBand, got)
		}
	}
}

func checkTarget(t *testing.T, sc *Scenario, stationID, connectorID string) {
	t.Helper()
	if sc.Expected.StationID != "" && stationID != sc.Expected.StationID {
		t.Errorf("scenario %s: expected station %s, got %s", sc.Name, sc.Expected.StationID, stationID)
	}
	if sc.Expected.ConnectorID != "" && connectorID != sc.Expected.ConnectorID {
		t.Errorf("scenario %s: expected connector %s, got %s", sc.Name, sc.Expected.ConnectorID, connectorID)
	}
}
