package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the knowledge-graph pipeline
type Registry struct {
	// Merge engine
	GraphNodesTotal     prometheus.Gauge
	GraphEdgesTotal     prometheus.Gauge
	NodeOperationsTotal *prometheus.CounterVec
	EdgeOperationsTotal *prometheus.CounterVec

	// Snapshots
	SnapshotDuration  *prometheus.HistogramVec
	SnapshotRowsTotal *prometheus.CounterVec

	// Id-mapping oracles
	OracleRequestsTotal *prometheus.CounterVec
	OracleRetriesTotal  *prometheus.CounterVec
	OracleCacheTotal    *prometheus.CounterVec

	// Export and passes
	ExportRowsTotal     *prometheus.CounterVec
	PassDuration        *prometheus.HistogramVec
	PassSnapshotVersion prometheus.Gauge

	// System
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	registry  *prometheus.Registry
	startedAt time.Time
	mu        sync.RWMutex
}

// Node operation outcomes
const (
	OutcomeCreated  = "created"
	OutcomeMerged   = "merged"
	OutcomeDropped  = "dropped"
	OutcomeConflict = "conflict"

	OutcomeDroppedUnresolved = "dropped_unresolved"
	OutcomeDroppedPredicate  = "dropped_predicate"
)

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
	}

	r.initGraphMetrics()
	r.initSnapshotMetrics()
	r.initOracleMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
