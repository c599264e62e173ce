// Package integrate contains the source integrators. Each pass loads the
// previous snapshot, feeds one source's records through the merge engine
// and saves the next snapshot version. The default order is KEGG (v1, from
// an empty graph), hierarchy (v2), KG2 (v3), BV-BRC (v4) and MicroPhenoDB
// (v5).
package integrate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// Pass integrates one data source into a graph.
type Pass interface {
	Name() string
	// Version is the snapshot number the pass writes by default.
	Version() int
	Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error
}

// Publisher uploads finished snapshot files.
type Publisher interface {
	Publish(ctx context.Context, version int, paths ...string) ([]string, error)
}

// NodeSnapshotName and EdgeSnapshotName are the file names of snapshot v.
func NodeSnapshotName(v int) string { return fmt.Sprintf("KG_nodes_v%d.tsv", v) }
func EdgeSnapshotName(v int) string { return fmt.Sprintf("KG_edges_v%d.tsv", v) }

// Runner wraps a pass with snapshot I/O, metrics and publication.
type Runner struct {
	// ExistingNodes and ExistingEdges name the prior snapshot. Both empty
	// means the pass starts from an empty graph.
	ExistingNodes string
	ExistingEdges string
	OutputDir     string
	// Version overrides Pass.Version when positive.
	Version int

	Logger      logging.Logger
	Metrics     *metrics.Registry
	MetricsFile string
	Publisher   Publisher
}

// Result describes a completed pass.
type Result struct {
	RunID     string
	Version   int
	NodesPath string
	EdgesPath string
	Nodes     int
	Edges     int
	Published []string
	Duration  time.Duration
}

// Run executes p. The prior snapshot is never modified: output goes to new
// file names and each file is renamed into place only once complete.
func (r *Runner) Run(ctx context.Context, p Pass) (*Result, error) {
	runID := uuid.NewString()
	base := r.Logger
	if base == nil {
		base = logging.NewNopLogger()
	}
	logger := base.With(logging.RunID(runID), logging.Pass(p.Name()))

	version := p.Version()
	if r.Version > 0 {
		version = r.Version
	}
	start := time.Now()

	g := kg.New(kg.Config{Logger: logger, Metrics: r.Metrics})
	if r.ExistingNodes != "" || r.ExistingEdges != "" {
		if r.ExistingNodes == "" || r.ExistingEdges == "" {
			return nil, fmt.Errorf("integrate: both existing nodes and edges are required")
		}
		logger.Info("loading existing knowledge graph",
			logging.String("nodes", r.ExistingNodes),
			logging.String("edges", r.ExistingEdges))
		if err := g.LoadGraph("", r.ExistingNodes, r.ExistingEdges); err != nil {
			return nil, err
		}
	}

	logger.Info("running pass", logging.Int("version", version))
	if err := p.Run(ctx, g, logger); err != nil {
		logger.Error("pass failed", logging.Error(err))
		return nil, fmt.Errorf("integrate %s: %w", p.Name(), err)
	}

	res := &Result{
		RunID:     runID,
		Version:   version,
		NodesPath: filepath.Join(r.OutputDir, NodeSnapshotName(version)),
		EdgesPath: filepath.Join(r.OutputDir, EdgeSnapshotName(version)),
		Nodes:     g.CountNodes(),
		Edges:     g.CountEdges(),
	}
	if err := g.SaveGraph(r.OutputDir, NodeSnapshotName(version), EdgeSnapshotName(version)); err != nil {
		return nil, err
	}
	logger.Info("KG saved",
		logging.String("nodes", res.NodesPath),
		logging.String("edges", res.EdgesPath),
		logging.Int("node_count", res.Nodes),
		logging.Int("edge_count", res.Edges))

	if r.Publisher != nil {
		keys, err := r.Publisher.Publish(ctx, version, res.NodesPath, res.EdgesPath)
		if err != nil {
			return nil, err
		}
		res.Published = keys
	}

	res.Duration = time.Since(start)
	r.Metrics.RecordPass(p.Name(), version, res.Duration)
	if err := r.Metrics.WriteTextfile(r.MetricsFile); err != nil {
		logger.Warn("failed to write metrics", logging.Error(err))
	}
	logger.Info("done", logging.Latency(res.Duration))
	return res, nil
}
