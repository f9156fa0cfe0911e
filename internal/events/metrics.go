package events

import "github.com/prometheus/client_golang/prometheus"

var publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "paceload",
	Subsystem: "events",
	Name:      "week_events_total",
	Help:      "Week update events written to Kafka, labeled by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(publishedCounter)
}
