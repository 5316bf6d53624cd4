package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
)

func TestInfluxSink_RecordPlan(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.PlanEvent{
		Action:     "RESERVE",
		Stations:   3,
		Candidates: 7,
		Degraded:   false,
		Elapsed:    42 * time.Millisecond,
		Time:       now,
	}
	if err := sink.RecordPlan(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("plan_event").
		AddTag("action", "RESERVE").
		AddTag("degraded", "false").
		AddTag("component", "planner").
		AddField("stations", 3).
		AddField("candidates", 7).
		AddField("duration_ms", 42.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestInfluxSink_RecordReservation(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.ReservationEvent{
		ReservationID: "res-1",
		StationID:     "ST001",
		ConnectorID:   "ST001-1",
		State:         "fulfilled",
		PromisedMin:   12,
		ActualMin:     14.5,
		Time:          now,
	}
	if err := sink.RecordReservation(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("reservation_event").
		AddTag("reservation_id", "res-1").
		AddTag("station_id", "ST001").
		AddTag("connector_id", "ST001-1").
		AddTag("state", "fulfilled").
		AddTag("component", "reservation_manager").
		AddField("promised_min", 12.0).
		AddField("actual_min", 14.5).
		AddField("reason", "").
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("bodies: %#v", bodies)
	}
}

func TestInfluxSink_RecordQuarantine(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.QuarantineEvent{
		ConnectorID: "ST001-1",
		StationID:   "ST001",
		Quarantined: true,
		Reason:      "soft_fault_rate=0.30",
		Time:        now,
	}
	if err := sink.RecordQuarantine(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("quarantine_event").
		AddTag("station_id", "ST001").
		AddTag("connector_id", "ST001-1").
		AddTag("quarantined", "true").
		AddTag("component", "reservation_manager").
		AddField("reason", "soft_fault_rate=0.30").
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("bodies: %#v", bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
