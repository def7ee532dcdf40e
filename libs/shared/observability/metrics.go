package observability

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submissions counts client submissions by outcome (accepted, invalid, unavailable, error).
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formbuilder_submissions_total",
		Help: "Client submissions by outcome.",
	}, []string{"result"})

	// Notifications counts notification attempts by outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formbuilder_notifications_total",
		Help: "Admin notification attempts by outcome.",
	}, []string{"result"})

	// SchemaEdits counts schema editor operations.
	SchemaEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formbuilder_schema_edits_total",
		Help: "Schema editor operations by kind.",
	}, []string{"op"})
)

// RegisterMetricsEndpoint exposes Prometheus metrics on /metrics.
func RegisterMetricsEndpoint(router chi.Router) {
	router.Handle("/metrics", promhttp.Handler())
}
