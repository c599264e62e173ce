package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// All Record* methods accept a nil receiver so the merge engine can run
// without a registry in tests and one-off tools.

// RecordNodeOperation counts one add_node outcome
func (r *Registry) RecordNodeOperation(outcome string) {
	if r == nil {
		return
	}
	r.NodeOperationsTotal.WithLabelValues(outcome).Inc()
}

// RecordEdgeOperation counts one add_edge outcome
func (r *Registry) RecordEdgeOperation(outcome string) {
	if r == nil {
		return
	}
	r.EdgeOperationsTotal.WithLabelValues(outcome).Inc()
}

// SetGraphSize updates the node and edge gauges
func (r *Registry) SetGraphSize(nodes, edges int) {
	if r == nil {
		return
	}
	r.GraphNodesTotal.Set(float64(nodes))
	r.GraphEdgesTotal.Set(float64(edges))
}

// RecordSnapshot records a save or load of a snapshot
func (r *Registry) RecordSnapshot(op string, nodeRows, edgeRows int, duration time.Duration) {
	if r == nil {
		return
	}
	r.SnapshotDuration.WithLabelValues(op).Observe(duration.Seconds())
	r.SnapshotRowsTotal.WithLabelValues("node", op).Add(float64(nodeRows))
	r.SnapshotRowsTotal.WithLabelValues("edge", op).Add(float64(edgeRows))
}

// RecordExport records rows written for a downstream graph database
func (r *Registry) RecordExport(kind, format string, rows int) {
	if r == nil {
		return
	}
	r.ExportRowsTotal.WithLabelValues(kind, format).Add(float64(rows))
}

// RecordPass records a completed integration pass
func (r *Registry) RecordPass(pass string, version int, duration time.Duration) {
	if r == nil {
		return
	}
	r.PassDuration.WithLabelValues(pass).Observe(duration.Seconds())
	r.PassSnapshotVersion.Set(float64(version))
}

// RecordOracleRequest counts one request to an id-mapping service
func (r *Registry) RecordOracleRequest(oracle, status string) {
	if r == nil {
		return
	}
	r.OracleRequestsTotal.WithLabelValues(oracle, status).Inc()
}

// RecordOracleRetry counts one retry after a transient failure
func (r *Registry) RecordOracleRetry(oracle string) {
	if r == nil {
		return
	}
	r.OracleRetriesTotal.WithLabelValues(oracle).Inc()
}

// RecordCacheLookup counts an id-mapping cache hit or miss
func (r *Registry) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.OracleCacheTotal.WithLabelValues(result).Inc()
}

// UpdateSystemMetrics refreshes process gauges
func (r *Registry) UpdateSystemMetrics() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UptimeSeconds.Set(time.Since(r.startedAt).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry for the node-exporter textfile collector.
// Batch passes call this once on exit.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	r.UpdateSystemMetrics()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
