// Package neo4jexport turns a knowledge graph into Neo4j input: bulk-import
// TSV files for neo4j-admin, or batched Cypher against a live server.
package neo4jexport

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// ArraySeparator joins list properties in bulk-import files.
const ArraySeparator = "ǂ"

// Bulk-import file names.
const (
	NodesHeaderFile = "nodes_header.tsv"
	NodesFile       = "nodes.tsv"
	EdgesHeaderFile = "edges_header.tsv"
	EdgesFile       = "edges.tsv"
)

// Description keys left out of Neo4j properties; gene lists make node
// panels unreadable in the browser.
var skippedDescriptionKeys = map[string]bool{
	"KO_related_genes": true,
}

// NodeHeader is the typed neo4j-admin header for nodes.tsv.
var NodeHeader = []string{
	"node_id:ID", "node_type", "all_names:string[]", "description",
	"knowledge_source:string[]", "link:string[]", "synonyms:string[]",
	"is_pathogen", ":LABEL",
}

// EdgeHeader is the typed neo4j-admin header for edges.tsv.
var EdgeHeader = []string{
	"source_node", "target_node", "predicate", "knowledge_source:string[]",
	":TYPE", ":START_ID", ":END_ID",
}

// Graph is the read side of a knowledge graph needed for export.
type Graph interface {
	ForEachNode(fn func(*kg.Node) bool)
	ForEachEdge(fn func(*kg.Edge) bool)
}

// Options configures WriteBulk.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// WriteBulk writes the four neo4j-admin import files into dir. Headers live
// in their own files so the data files can be split or concatenated.
func WriteBulk(dir string, g Graph, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.Component("neo4jexport"))

	if err := writeHeader(filepath.Join(dir, NodesHeaderFile), NodeHeader); err != nil {
		return err
	}
	if err := writeHeader(filepath.Join(dir, EdgesHeaderFile), EdgeHeader); err != nil {
		return err
	}

	nodes, err := writeRows(filepath.Join(dir, NodesFile), func(emit func([]string) bool) {
		g.ForEachNode(func(n *kg.Node) bool { return emit(NodeRow(n)) })
	})
	if err != nil {
		return err
	}
	logger.Info("wrote neo4j nodes", logging.Path(filepath.Join(dir, NodesFile)), logging.Count(nodes))
	opts.Metrics.RecordExport("node", "neo4j_bulk", nodes)

	edges, err := writeRows(filepath.Join(dir, EdgesFile), func(emit func([]string) bool) {
		g.ForEachEdge(func(e *kg.Edge) bool { return emit(EdgeRow(e)) })
	})
	if err != nil {
		return err
	}
	logger.Info("wrote neo4j edges", logging.Path(filepath.Join(dir, EdgesFile)), logging.Count(edges))
	opts.Metrics.RecordExport("edge", "neo4j_bulk", edges)
	return nil
}

// NodeRow formats one node in NodeHeader order.
func NodeRow(n *kg.Node) []string {
	category := n.Type.Category()
	return []string{
		n.ID,
		category,
		strings.Join(n.Names.Slice(), ArraySeparator),
		FlattenDescription(n.Description),
		strings.Join(n.KnowledgeSources.Slice(), ArraySeparator),
		strings.Join(n.Links.Slice(), ArraySeparator),
		strings.Join(n.Synonyms.Slice(), ArraySeparator),
		pythonBool(n.IsPathogen),
		category,
	}
}

// EdgeRow formats one edge in EdgeHeader order.
func EdgeRow(e *kg.Edge) []string {
	return []string{
		e.Source,
		e.Target,
		e.Predicate,
		strings.Join(e.KnowledgeSources.Slice(), ArraySeparator),
		e.Predicate,
		e.Source,
		e.Target,
	}
}

// FlattenDescription renders a description as "key:value; key:value",
// dropping empty values and skipped keys.
func FlattenDescription(a kg.Attributes) string {
	parts := make([]string, 0, a.Len())
	for _, p := range a.Pairs() {
		if p.Value == "" || skippedDescriptionKeys[p.Key] {
			continue
		}
		parts = append(parts, p.Key+":"+p.Value)
	}
	return strings.Join(parts, "; ")
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func writeHeader(path string, header []string) error {
	w, err := tsv.Create(path, header)
	if err != nil {
		return err
	}
	return w.Close()
}

func writeRows(path string, produce func(emit func([]string) bool)) (int, error) {
	w, err := tsv.Create(path, nil)
	if err != nil {
		return 0, err
	}
	var werr error
	produce(func(row []string) bool {
		werr = w.Write(row)
		return werr == nil
	})
	if werr != nil {
		w.Abort()
		return 0, fmt.Errorf("neo4jexport: %w", werr)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}
