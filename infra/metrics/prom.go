package metrics

import (
	"strconv"

	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records guardian events in Prometheus metrics.
type PromSink struct {
	plans        *prometheus.CounterVec
	planLatency  *prometheus.HistogramVec
	reservations *prometheus.CounterVec
	quarantined  prometheus.Gauge
	accuracyP90  prometheus.Gauge
}

// NewPromSink registers guardian metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	plans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_plans_total",
		Help: "Total number of plans produced, by recommended action",
	}, []string{"action", "degraded"})
	planLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardian_plan_duration_seconds",
		Help:    "Time spent assembling a plan",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_reservation_transitions_total",
		Help: "Reservation lifecycle transitions by resulting state",
	}, []string{"state"})
	quarantined := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_quarantined_connectors",
		Help: "Number of connectors currently pulled from rotation",
	})
	accuracy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_promise_accuracy_p90_minutes",
		Help: "p90 of absolute promised vs actual start divergence",
	})

	if err := reg.Register(plans); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			plans = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(planLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			planLatency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reservations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reservations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(quarantined); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			quarantined = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(accuracy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			accuracy = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		plans:        plans,
		planLatency:  planLatency,
		reservations: reservations,
		quarantined:  quarantined,
		accuracyP90:  accuracy,
	}, nil
}

// RecordPlan counts the plan and observes its latency.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.plans.WithLabelValues(ev.Action, strconv.FormatBool(ev.Degraded)).Inc()
	s.planLatency.WithLabelValues(ev.Action).Observe(ev.Elapsed.Seconds())
	return nil
}

// RecordReservation counts the transition.
func (s *PromSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	s.reservations.WithLabelValues(ev.State).Inc()
	return nil
}

// RecordQuarantine moves the quarantined-connectors gauge.
func (s *PromSink) RecordQuarantine(ev coremetrics.QuarantineEvent) error {
	if ev.Quarantined {
		s.quarantined.Inc()
	} else {
		s.quarantined.Dec()
	}
	return nil
}

// RecordAccuracyP90 sets the rolling promise-accuracy gauge.
func (s *PromSink) RecordAccuracyP90(minutes float64) error {
	s.accuracyP90.Set(minutes)
	return nil
}
