package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var requestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "paceload",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests served, labeled by method, route and status class.",
}, []string{"method", "route", "status"})

func init() {
	prometheus.MustRegister(requestsCounter)
}

// routePattern keeps label cardinality bounded by using the matched chi
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
