package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.GraphNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kg_nodes_total",
			Help: "Number of canonical nodes in the knowledge graph",
		},
	)

	r.GraphEdgesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kg_edges_total",
			Help: "Number of distinct (source, predicate, target) edges",
		},
	)

	r.NodeOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_node_operations_total",
			Help: "add_node calls by outcome",
		},
		[]string{"outcome"},
	)

	r.EdgeOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_edge_operations_total",
			Help: "add_edge calls by outcome",
		},
		[]string{"outcome"},
	)
}

func (r *Registry) initSnapshotMetrics() {
	r.SnapshotDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kg_snapshot_duration_seconds",
			Help:    "Time spent saving or loading a graph snapshot",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"op"},
	)

	r.SnapshotRowsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_snapshot_rows_total",
			Help: "Snapshot rows read or written",
		},
		[]string{"kind", "op"},
	)

	r.ExportRowsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_export_rows_total",
			Help: "Rows exported to downstream graph databases",
		},
		[]string{"kind", "format"},
	)

	r.PassDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kg_pass_duration_seconds",
			Help:    "Wall time of an integration pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"pass"},
	)

	r.PassSnapshotVersion = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kg_pass_snapshot_version",
			Help: "Snapshot version written by the last completed pass",
		},
	)
}

func (r *Registry) initOracleMetrics() {
	r.OracleRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_oracle_requests_total",
			Help: "Requests sent to external id-mapping services",
		},
		[]string{"oracle", "status"},
	)

	r.OracleRetriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_oracle_retries_total",
			Help: "Retries after transient id-mapping failures",
		},
		[]string{"oracle"},
	)

	r.OracleCacheTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kg_oracle_cache_total",
			Help: "Id-mapping cache lookups by result",
		},
		[]string{"result"},
	)
}
