package recompute

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "recompute",
		Name:      "jobs_total",
		Help:      "Recompute job outcomes, labeled by result.",
	}, []string{"result"})

	activitiesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paceload",
		Subsystem: "recompute",
		Name:      "activities_reclassified_total",
		Help:      "Activities reclassified by recompute jobs.",
	})

	jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paceload",
		Subsystem: "recompute",
		Name:      "job_duration_seconds",
		Help:      "Time spent running a recompute job attempt.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(jobsCounter, activitiesCounter, jobDuration)
}
