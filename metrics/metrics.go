// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// polling
	Refreshes      *prometheus.CounterVec
	PollingState   prometheus.Gauge
	OperationCount prometheus.Gauge

	// writes
	Workflows *prometheus.CounterVec
	Grants    *prometheus.CounterVec

	// cache
	MetadataFetches *prometheus.CounterVec
}

// New registers all collectors on a private registry, so tests can build
// as many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrow_refreshes_total",
			Help: "Polling refreshes by stream and result (applied, stale, error, skipped).",
		}, []string{"stream", "result"}),
		PollingState: f.NewGauge(prometheus.GaugeOpts{
			Name: "scrow_polling_state",
			Help: "Scheduler state: 0 idle, 1 polling, 2 paused.",
		}),
		OperationCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "scrow_operations",
			Help: "Operations in the current snapshot.",
		}),
		Workflows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrow_workflows_total",
			Help: "Write workflows by action and result.",
		}, []string{"action", "result"}),
		Grants: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrow_allowance_checks_total",
			Help: "Allowance checks by outcome (granted, sufficient, failed).",
		}, []string{"outcome"}),
		MetadataFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrow_metadata_fetches_total",
			Help: "Token metadata ledger fetches by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
