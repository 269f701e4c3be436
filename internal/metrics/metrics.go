// Public domain.

// Package metrics holds the Prometheus metrics of a single pipeline run.
//
// gwagn is a batch program, so each run owns a private registry that can
// be pushed to a Pushgateway when the run completes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "gwagn"

// Run collects metrics for one run.  A nil *Run records nothing.
type Run struct {
	registry *prometheus.Registry
	start    time.Time

	queries   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	survivors *prometheus.GaugeVec
	clusters  prometheus.Gauge
	duration  prometheus.Gauge
}

// New creates a Run with a fresh registry.
func New() *Run {
	r := &Run{registry: prometheus.NewRegistry(), start: time.Now()}
	auto := promauto.With(r.registry)
	r.queries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_queries_total",
		Help:      "Catalog queries issued, by stage.",
	}, []string{"stage"})
	r.failures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Skipped units of work (clusters, rows, batches), by stage.",
	}, []string{"stage"})
	r.survivors = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stage_rows",
		Help:      "Rows output by each stage.",
	}, []string{"stage"})
	r.clusters = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "clusters",
		Help:      "Number of clusters the credible region was divided into.",
	})
	r.duration = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the run.",
	})
	return r
}

// Registry returns the run's registry.
func (r *Run) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Run) Query(stage string) {
	if r != nil {
		r.queries.WithLabelValues(stage).Inc()
	}
}

func (r *Run) Failure(stage string) {
	if r != nil {
		r.failures.WithLabelValues(stage).Inc()
	}
}

func (r *Run) Rows(stage string, n int) {
	if r != nil {
		r.survivors.WithLabelValues(stage).Set(float64(n))
	}
}

func (r *Run) Clusters(k int) {
	if r != nil {
		r.clusters.Set(float64(k))
	}
}

// Done records the run duration.
func (r *Run) Done() time.Duration {
	if r == nil {
		return 0
	}
	d := time.Since(r.start)
	r.duration.Set(d.Seconds())
	return d
}

// Push sends the registry to the Pushgateway at url under job.
func (r *Run) Push(url, job string) error {
	if r == nil {
		return nil
	}
	return push.New(url, job).Gatherer(r.registry).Push()
}
