package service

import "github.com/prometheus/client_golang/prometheus"

var (
	classificationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "engine",
		Name:      "classifications_total",
		Help:      "Activities classified into pace zones, labeled by outcome status.",
	}, []string{"status"})

	weeksAggregatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "engine",
		Name:      "weeks_aggregated_total",
		Help:      "Weekly zone time rows recomputed.",
	})

	weeksComputedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "engine",
		Name:      "weeks_monotony_computed_total",
		Help:      "Weekly monotony/strain rows recomputed.",
	})

	zoneVersionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "zones",
		Name:      "versions_inserted_total",
		Help:      "Zone configuration versions appended, labeled by whether they were backdated.",
	}, []string{"backdated"})

	resolverCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "zones",
		Name:      "resolver_lookups_total",
		Help:      "Zone resolver lookups, labeled by cache result.",
	}, []string{"result"})

	syncActivitiesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "sync",
		Name:      "activities_stored_total",
		Help:      "Activity summaries stored from Strava.",
	})
)

func init() {
	prometheus.MustRegister(
		classificationsCounter,
		weeksAggregatedCounter,
		weeksComputedCounter,
		zoneVersionsCounter,
		resolverCacheCounter,
		syncActivitiesCounter,
	)
}
