package metrics

import (
	coremetrics "github.com/usermihir/Agentic-EV/core/metrics"
)

// NewSink builds the configured metrics sink. Multiple enabled backends
// are combined into a MultiSink; none enabled yields a NopSink.
func NewSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	cfg.SetDefaults()
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
