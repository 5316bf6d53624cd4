package plan

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/planner"
	"github.com/usermihir/Agentic-EV/core/predict"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/core/telemetry"
	"github.com/usermihir/Agentic-EV/core/trust"
	"github.com/usermihir/Agentic-EV/infra/store"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	repo := store.NewMemory()
	repo.PutStation(model.Station{ID: "ST001", Name: "Airport"})
	repo.PutConnector(model.Connector{
		ID: "ST001-1", StationID: "ST001", Type: model.ConnectorDC, PowerKW: 150,
		Status: model.StatusAvailable, StartSuccessRate: 0.99, SoftFaultRate: 0.01, MTTRHours: 0.5,
	})
	scorer, err := trust.NewScorer(trust.Config{})
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	mgr, err := reservation.NewManager(reservation.Config{}, repo, repo, repo, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	p, err := planner.New(planner.Config{}, repo, telemetry.NewRollingStats(), predict.NewQueueEngine(),
		scorer, mgr, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return NewHandler(p, repo, "secret")
}

func TestPlanHandler(t *testing.T) {
	h := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(`{"user_id":"u1","eta_min":10}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"action":"RESERVE"`) {
		t.Fatalf("expected RESERVE action: %s", body)
	}
	if !strings.Contains(body, `"station_id":"ST001"`) {
		t.Fatalf("expected station card: %s", body)
	}
}

func TestPlanHandlerAuth(t *testing.T) {
	h := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(`{"user_id":"u1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPlanHandlerRejectsBadRequests(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(`{broken`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/plan", strings.NewReader(`{"user_id":"u1","eta_min":-2}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation should map to 400, got %d", rec.Code)
	}
}
