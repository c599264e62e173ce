package integrate

import (
	"context"
	"fmt"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// RecordFiles is one node file and its companion edge file. Either may be
// empty.
type RecordFiles struct {
	Nodes string
	Edges string
}

// Records replays flat node and edge record files, such as curated
// additions or the output of another graph build. Nodes are identified by
// synonyms only, so records merge into whatever the graph already holds,
// and an empty graph is a valid starting point.
type Records struct {
	Source  string
	Files   []RecordFiles
	Release int
}

func (r *Records) Name() string {
	if r.Source == "" {
		return "records"
	}
	return r.Source
}

func (r *Records) Version() int {
	if r.Release > 0 {
		return r.Release
	}
	return 1
}

func (r *Records) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	var paths []string
	for _, f := range r.Files {
		if f.Nodes != "" {
			paths = append(paths, f.Nodes)
		}
		if f.Edges != "" {
			paths = append(paths, f.Edges)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("records: no input files")
	}
	if !tsv.CheckFiles(logger, paths...) {
		return fmt.Errorf("records: %w", kg.ErrMissingFile)
	}

	for _, f := range r.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		before, beforeEdges := g.CountNodes(), g.CountEdges()
		if err := g.LoadRecords(f.Nodes, f.Edges); err != nil {
			return err
		}
		logger.Info("integrated records",
			logging.String("nodes", f.Nodes),
			logging.String("edges", f.Edges),
			logging.Int("new_nodes", g.CountNodes()-before),
			logging.Int("new_edges", g.CountEdges()-beforeEdges))
	}
	return nil
}
