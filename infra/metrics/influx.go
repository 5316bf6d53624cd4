package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/usermihir/Agentic-EV/infra/logger"
)

// InfluxSink writes guardian events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes the plan summary as a line protocol event.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_event").
		AddTag("action", ev.Action).
		AddTag("degraded", strconv.FormatBool(ev.Degraded)).
		AddTag("component", "planner").
		AddField("stations", ev.Stations).
		AddField("candidates", ev.Candidates).
		AddField("duration_ms", round3(ev.Elapsed.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordReservation writes one reservation transition.
func (s *InfluxSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("reservation_event").
		AddTag("reservation_id", ev.ReservationID).
		AddTag("station_id", ev.StationID).
		AddTag("connector_id", ev.ConnectorID).
		AddTag("state", ev.State).
		AddTag("component", "reservation_manager").
		AddField("promised_min", round3(ev.PromisedMin)).
		AddField("actual_min", round3(ev.ActualMin)).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordQuarantine writes a quarantine toggle.
func (s *InfluxSink) RecordQuarantine(ev coremetrics.QuarantineEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("quarantine_event").
		AddTag("station_id", ev.StationID).
		AddTag("connector_id", ev.ConnectorID).
		AddTag("quarantined", strconv.FormatBool(ev.Quarantined)).
		AddTag("component", "reservation_manager").
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAccuracyP90 writes the rolling promise-accuracy value.
func (s *InfluxSink) RecordAccuracyP90(minutes float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("promise_accuracy").
		AddTag("component", "reservation_manager").
		AddField("p90_minutes", round3(minutes)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
