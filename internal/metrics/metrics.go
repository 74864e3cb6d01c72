package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels forecasts that produced a fill-date distribution.
	OutcomeSuccess = "success"
	// OutcomeUnavailable labels forecasts where no iteration filled the requisition.
	OutcomeUnavailable = "unavailable"
	// OutcomeError labels rejected or failed requests.
	OutcomeError = "error"
)

const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

var (
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_oracle",
			Name:      "forecasts_total",
			Help:      "Total number of forecasts handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	simulationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pipeline_oracle",
			Name:      "simulation_seconds",
			Help:      "Monte-Carlo run latency in seconds, by mode.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_oracle",
			Name:      "cache_lookups_total",
			Help:      "Forecast memo lookups, partitioned by result.",
		},
		[]string{"result"},
	)

	bottlenecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipeline_oracle",
			Name:      "bottlenecks_total",
			Help:      "Capacity bottlenecks detected, partitioned by owner type.",
		},
		[]string{"owner"},
	)
)

// Register attaches pipeline-oracle collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		forecastsTotal,
		simulationSeconds,
		cacheLookupsTotal,
		bottlenecksTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveForecast counts a forecast under its outcome label.
func ObserveForecast(outcome string) {
	switch outcome {
	case OutcomeUnavailable, OutcomeError:
	default:
		outcome = OutcomeSuccess
	}
	forecastsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSimulation records one simulator run; mode is "pipeline" or "capacity".
func ObserveSimulation(mode string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	simulationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a memo lookup result.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveBottleneck counts a detected bottleneck for the owner type.
func ObserveBottleneck(owner string) {
	if owner == "" {
		owner = "unknown"
	}
	bottlenecksTotal.WithLabelValues(owner).Inc()
}
