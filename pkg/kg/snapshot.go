package kg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// SnapshotVersion identifies the cell encoding written by SaveGraph: list
// columns hold JSON arrays and descriptions hold JSON arrays of [key, value].
// Readers also accept the earlier Python-literal encoding.
const SnapshotVersion = 2

const (
	ColNodeID          = "node_id"
	ColNodeType        = "node_type"
	ColAllNames        = "all_names"
	ColDescription     = "description"
	ColKnowledgeSource = "knowledge_source"
	ColLink            = "link"
	ColSynonyms        = "synonyms"
	ColIsPathogen      = "is_pathogen"
	ColSourceNode      = "source_node"
	ColTargetNode      = "target_node"
	ColPredicate       = "predicate"
)

// NodeColumns is the header of a node snapshot file.
var NodeColumns = []string{
	ColNodeID, ColNodeType, ColAllNames, ColDescription,
	ColKnowledgeSource, ColLink, ColSynonyms, ColIsPathogen,
}

// EdgeColumns is the header of an edge snapshot file.
var EdgeColumns = []string{
	ColSourceNode, ColTargetNode, ColPredicate, ColDescription, ColKnowledgeSource,
}

// SaveGraph writes the graph to dir/nodeFile and dir/edgeFile, creating dir
// if needed. Each file is written to a temporary name and renamed into
// place, so an interrupted save never leaves a truncated snapshot.
func (g *KnowledgeGraph) SaveGraph(dir, nodeFile, edgeFile string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewError("save_graph").Context(dir).Cause(err).Err()
	}
	timer := logging.StartTimer(g.logger, "save_graph", logging.Path(dir))
	start := time.Now()

	nodePath := filepath.Join(dir, nodeFile)
	if err := g.writeNodes(nodePath); err != nil {
		timer.EndError(err)
		return err
	}
	g.logger.Info("saved nodes", logging.Path(nodePath), logging.Count(g.nodes.len()))

	edgePath := filepath.Join(dir, edgeFile)
	if err := g.writeEdges(edgePath); err != nil {
		timer.EndError(err)
		return err
	}
	g.logger.Info("saved edges", logging.Path(edgePath), logging.Count(g.edges.len()))

	timer.End()
	g.metrics.RecordSnapshot("save", g.nodes.len(), g.edges.len(), time.Since(start))
	return nil
}

func (g *KnowledgeGraph) writeNodes(path string) error {
	w, err := tsv.Create(path, NodeColumns)
	if err != nil {
		return NewError("save_graph").Context(path).Cause(err).Err()
	}
	var werr error
	g.ForEachNode(func(n *Node) bool {
		werr = w.Write([]string{
			n.ID,
			n.Type.Category(),
			encodeList(n.Names),
			encodeAttributes(n.Description),
			encodeList(n.KnowledgeSources),
			encodeList(n.Links),
			encodeList(n.Synonyms),
			formatBool(n.IsPathogen),
		})
		return werr == nil
	})
	if werr != nil {
		w.Abort()
		return NewError("save_graph").Context(path).Cause(werr).Err()
	}
	if err := w.Close(); err != nil {
		return NewError("save_graph").Context(path).Cause(err).Err()
	}
	return nil
}

func (g *KnowledgeGraph) writeEdges(path string) error {
	w, err := tsv.Create(path, EdgeColumns)
	if err != nil {
		return NewError("save_graph").Context(path).Cause(err).Err()
	}
	var werr error
	g.ForEachEdge(func(e *Edge) bool {
		werr = w.Write([]string{
			e.Source,
			e.Target,
			e.Predicate,
			encodeAttributes(e.Description),
			encodeList(e.KnowledgeSources),
		})
		return werr == nil
	})
	if werr != nil {
		w.Abort()
		return NewError("save_graph").Context(path).Cause(werr).Err()
	}
	if err := w.Close(); err != nil {
		return NewError("save_graph").Context(path).Cause(err).Err()
	}
	return nil
}

// LoadGraph replays a snapshot written by SaveGraph through AddNode and
// AddEdge in file order. Node ids stored in the file are kept when they are
// well formed and still free, which makes a load into an empty graph
// reproduce the saved ids exactly. Loading into a non-empty graph is allowed
// but ids may then be reassigned.
//
// An identity conflict aborts the load and is returned; unsupported types
// and dangling edges are skipped with a warning.
func (g *KnowledgeGraph) LoadGraph(dir, nodeFile, edgeFile string) error {
	if g.nodes.len() > 0 {
		g.logger.Warn("loading snapshot into a non-empty graph; node ids may be reassigned",
			logging.Count(g.nodes.len()))
	}
	return g.load("load_graph",
		filepath.Join(dir, nodeFile), filepath.Join(dir, edgeFile), true)
}

// LoadRecords layers flat node and edge record files onto the graph. They
// use the snapshot columns, except that node_id is optional and ignored:
// every record is identified by its synonyms alone. Either path may be
// empty to skip that file.
func (g *KnowledgeGraph) LoadRecords(nodePath, edgePath string) error {
	return g.load("load_records", nodePath, edgePath, false)
}

func (g *KnowledgeGraph) load(op, nodePath, edgePath string, presetIDs bool) error {
	timer := logging.StartTimer(g.logger, op,
		logging.String("nodes", nodePath), logging.String("edges", edgePath))
	start := time.Now()

	nodeRows, err := g.loadNodes(op, nodePath, presetIDs)
	if err != nil {
		timer.EndError(err)
		return err
	}
	edgeRows, err := g.loadEdges(op, edgePath)
	if err != nil {
		timer.EndError(err)
		return err
	}

	timer.End()
	g.logger.Info("graph loaded",
		logging.Int("node_rows", nodeRows),
		logging.Int("edge_rows", edgeRows),
		logging.Int("nodes", g.nodes.len()),
		logging.Int("edges", g.edges.len()))
	g.metrics.RecordSnapshot("load", nodeRows, edgeRows, time.Since(start))
	return nil
}

func (g *KnowledgeGraph) loadNodes(op, path string, presetIDs bool) (int, error) {
	if path == "" {
		return 0, nil
	}
	r, err := openSnapshot(op, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	required := []string{ColNodeType, ColSynonyms}
	if presetIDs {
		required = NodeColumns
	}
	if err := r.Require(required...); err != nil {
		return 0, NewError(op).Snapshot(path, 1).Cause(fmt.Errorf("%w: %w", ErrMalformedRow, err)).Err()
	}

	rows := 0
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, NewError(op).Snapshot(path, r.Line()+1).Cause(err).Err()
		}
		rows++

		n, err := decodeNode(r, row)
		if err != nil {
			var ce *cellError
			if errors.As(err, &ce) {
				return rows, RowError(op, path, r.Line(), ce.column, ce.err)
			}
			return rows, NewError(op).Snapshot(path, r.Line()).Cause(err).Err()
		}
		preset := ""
		if presetIDs {
			preset = r.Field(row, ColNodeID)
		}
		if _, err := g.addNode(n, preset); err != nil {
			return rows, NewError(op).Snapshot(path, r.Line()).Cause(err).Err()
		}
	}
}

func (g *KnowledgeGraph) loadEdges(op, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	r, err := openSnapshot(op, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if err := r.Require(ColSourceNode, ColTargetNode, ColPredicate, ColKnowledgeSource); err != nil {
		return 0, NewError(op).Snapshot(path, 1).Cause(fmt.Errorf("%w: %w", ErrMalformedRow, err)).Err()
	}

	rows := 0
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, NewError(op).Snapshot(path, r.Line()+1).Cause(err).Err()
		}
		rows++

		e, err := decodeEdge(r, row)
		if err != nil {
			var ce *cellError
			if errors.As(err, &ce) {
				return rows, RowError(op, path, r.Line(), ce.column, ce.err)
			}
			return rows, NewError(op).Snapshot(path, r.Line()).Cause(err).Err()
		}
		g.AddEdge(e)
	}
}

func openSnapshot(op, path string) (*tsv.Reader, error) {
	r, err := tsv.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrMissingFile, err)
		}
		return nil, NewError(op).Snapshot(path, 0).Cause(err).Err()
	}
	return r, nil
}

type cellError struct {
	column string
	err    error
}

func (e *cellError) Error() string { return e.column + ": " + e.err.Error() }
func (e *cellError) Unwrap() error { return e.err }

func decodeNode(r *tsv.Reader, row []string) (*Node, error) {
	raw := r.Field(row, ColNodeType)
	t, ok := ParseNodeType(raw)
	if !ok {
		// Left invalid so AddNode can report and drop it.
		t = NodeType(raw)
	}
	n := &Node{Type: t}

	lists := []struct {
		column string
		dst    *StringSet
	}{
		{ColAllNames, &n.Names},
		{ColKnowledgeSource, &n.KnowledgeSources},
		{ColLink, &n.Links},
		{ColSynonyms, &n.Synonyms},
	}
	for _, l := range lists {
		items, err := decodeList(r.Field(row, l.column))
		if err != nil {
			return nil, &cellError{l.column, err}
		}
		for _, item := range items {
			l.dst.Add(item)
		}
	}

	pairs, err := decodeAttributes(r.Field(row, ColDescription))
	if err != nil {
		return nil, &cellError{ColDescription, err}
	}
	n.Description = NewAttributes(pairs...)

	n.IsPathogen, err = parseBool(r.Field(row, ColIsPathogen))
	if err != nil {
		return nil, &cellError{ColIsPathogen, err}
	}
	return n, nil
}

func decodeEdge(r *tsv.Reader, row []string) (*Edge, error) {
	e := &Edge{
		Source:    r.Field(row, ColSourceNode),
		Target:    r.Field(row, ColTargetNode),
		Predicate: r.Field(row, ColPredicate),
	}
	sources, err := decodeList(r.Field(row, ColKnowledgeSource))
	if err != nil {
		return nil, &cellError{ColKnowledgeSource, err}
	}
	e.KnowledgeSources = NewStringSet(sources...)

	pairs, err := decodeAttributes(r.Field(row, ColDescription))
	if err != nil {
		return nil, &cellError{ColDescription, err}
	}
	e.Description = NewAttributes(pairs...)
	return e, nil
}

func encodeList(s StringSet) string {
	items := s.items
	if items == nil {
		items = []string{}
	}
	return marshalCell(items)
}

func encodeAttributes(a Attributes) string {
	pairs := make([][2]string, 0, len(a.pairs))
	for _, p := range a.pairs {
		pairs = append(pairs, [2]string{p.Key, p.Value})
	}
	return marshalCell(pairs)
}

func marshalCell(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Only strings are encoded; this cannot fail.
		panic(err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func decodeList(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(cell), &items); err == nil {
		return items, nil
	}
	return literalStrings(cell)
}

func decodeAttributes(cell string) ([]Attribute, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	var pairs [][2]string
	if err := json.Unmarshal([]byte(cell), &pairs); err == nil {
		out := make([]Attribute, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, Attribute{Key: p[0], Value: p[1]})
		}
		return out, nil
	}
	return literalPairs(cell)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(cell string) (bool, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false, nil
	}
	return strconv.ParseBool(cell)
}
