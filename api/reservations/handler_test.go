package reservations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/core/reservation"
	"github.com/usermihir/Agentic-EV/infra/store"
)

func setup(t *testing.T) (*store.Memory, *reservation.Manager, model.Reservation) {
	t.Helper()
	repo := store.NewMemory()
	repo.PutStation(model.Station{ID: "ST001"})
	repo.PutConnector(model.Connector{ID: "c1", StationID: "ST001", Status: model.StatusAvailable})
	mgr, err := reservation.NewManager(reservation.Config{}, repo, repo, repo, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	res, err := mgr.Reserve(context.Background(), "ST001", "c1", "u1", 8, 8)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return repo, mgr, res
}

func TestCancelHandler(t *testing.T) {
	repo, mgr, res := setup(t)
	h := NewCancelHandler(mgr, "")

	req := httptest.NewRequest(http.MethodPost, "/api/reservations/cancel",
		strings.NewReader(`{"reservation_id":"`+res.ID+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	c, _ := repo.Connector("c1")
	if c.Status != model.StatusAvailable {
		t.Fatalf("connector not released: %s", c.Status)
	}

	// Cancelling twice is a conflict: the hold is already terminal.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reservations/cancel",
		strings.NewReader(`{"reservation_id":"`+res.ID+`"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reservations/cancel",
		strings.NewReader(`{"reservation_id":"missing"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStartSessionHandler(t *testing.T) {
	repo, mgr, _ := setup(t)
	h := NewStartSessionHandler(mgr, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/reservations/start",
		strings.NewReader(`{"connector_id":"c1","actual_start_min":11.5}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"state":"fulfilled"`) {
		t.Fatalf("body: %s", rec.Body.String())
	}
	c, _ := repo.Connector("c1")
	if c.Status != model.StatusCharging {
		t.Fatalf("connector not charging: %s", c.Status)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/reservations/start",
		strings.NewReader(`{"connector_id":"c1"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
