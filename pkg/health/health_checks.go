package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
)

// Counter is the part of the graph a health check needs.
type Counter interface {
	CountNodes() int
	CountEdges() int
}

// GraphCheck reports the loaded graph size. An empty graph is unhealthy,
// nodes without a single edge is degraded.
func GraphCheck(g Counter) CheckFunc {
	return func(context.Context) Check {
		nodes, edges := g.CountNodes(), g.CountEdges()
		check := Check{
			Name:    "graph",
			Details: map[string]any{"nodes": nodes, "edges": edges},
		}
		switch {
		case nodes == 0:
			check.Status = StatusUnhealthy
			check.Message = "Graph is empty"
		case edges == 0:
			check.Status = StatusDegraded
			check.Message = "Graph has no edges"
		default:
			check.Status = StatusHealthy
			check.Message = "Graph loaded"
		}
		return check
	}
}

// SnapshotCheck reports whether the snapshot files the server was started
// from are still readable.
func SnapshotCheck(paths ...string) CheckFunc {
	return func(context.Context) Check {
		check := Check{
			Name:    "snapshot",
			Status:  StatusHealthy,
			Message: "Snapshot files present",
			Details: make(map[string]any, len(paths)),
		}
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				check.Status = StatusDegraded
				check.Message = fmt.Sprintf("Snapshot file unavailable: %s", p)
				check.Details[p] = err.Error()
				continue
			}
			check.Details[p] = info.ModTime().UTC()
		}
		return check
	}
}

// PingCheck wraps a connectivity check such as a cache or Neo4j ping.
func PingCheck(name string, ping func(context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Name: name}
		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}
		return check
	}
}

// MemoryCheck is degraded once the Go heap exceeds limit bytes. A limit of
// zero only reports usage.
func MemoryCheck(limit uint64) CheckFunc {
	return func(context.Context) Check {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		check := Check{
			Name:    "memory",
			Status:  StatusHealthy,
			Message: "Memory usage normal",
			Details: map[string]any{
				"heap_alloc_bytes": ms.HeapAlloc,
				"sys_bytes":        ms.Sys,
				"goroutines":       runtime.NumGoroutine(),
			},
		}
		if limit > 0 && ms.HeapAlloc > limit {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		}
		return check
	}
}
