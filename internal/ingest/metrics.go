package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	metricSources = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "ingest",
		Name:      "metric_sources_total",
		Help:      "Activities ingested, labeled by metric and the source that supplied it.",
	}, []string{"metric", "source"})

	fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "ingest",
		Name:      "fetch_failures_total",
		Help:      "Source fetches that failed after retries, labeled by source.",
	}, []string{"source"})

	weatherLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "ingest",
		Name:      "weather_lookups_total",
		Help:      "Weather enrichment attempts, labeled by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(metricSources, fetchFailures, weatherLookups)
}
