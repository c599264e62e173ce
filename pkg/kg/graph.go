package kg

import (
	"sort"
	"strings"

	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// Config holds the collaborators injected into a KnowledgeGraph.
type Config struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// KnowledgeGraph coordinates the identity index with the node and edge
// stores. All mutation goes through AddNode and AddEdge.
type KnowledgeGraph struct {
	identity *IdentityIndex
	nodes    *NodeStore
	edges    *EdgeStore
	logger   logging.Logger
	metrics  *metrics.Registry
}

// New creates an empty graph. A nil logger discards output and a nil
// metrics registry disables instrumentation.
func New(cfg Config) *KnowledgeGraph {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &KnowledgeGraph{
		identity: NewIdentityIndex(),
		nodes:    newNodeStore(),
		edges:    newEdgeStore(),
		logger:   logger.With(logging.Component("kg")),
		metrics:  cfg.Metrics,
	}
}

// AddNode merges candidate into the graph and returns the canonical id it
// now lives under.
//
// A candidate whose synonyms resolve to no existing node becomes a new node
// with a freshly allocated id; its own id is added to its synonyms. One that
// resolves to exactly one node is unioned into it. One that resolves to more
// than one node is rejected with a *ConflictError and the graph is left
// unchanged. A new candidate with an unsupported type is dropped with a
// warning and AddNode returns "" with a nil error. A nil candidate is
// logged as an error and likewise returns "" with a nil error.
//
// The candidate is never retained; callers may reuse it.
func (g *KnowledgeGraph) AddNode(candidate *Node) (string, error) {
	if candidate == nil {
		g.logger.Error("refusing nil node")
		g.metrics.RecordNodeOperation(metrics.OutcomeDropped)
		return "", nil
	}
	return g.addNode(candidate, "")
}

func (g *KnowledgeGraph) addNode(c *Node, presetID string) (string, error) {
	matched := g.resolveAll(c.Synonyms.items)

	switch len(matched) {
	case 0:
		return g.createNode(c, presetID)
	case 1:
		id := matched[0]
		existing, _ := g.nodes.get(id)
		for _, s := range existing.absorb(c) {
			if err := g.identity.Register(s, id); err != nil {
				return "", err
			}
		}
		g.metrics.RecordNodeOperation(metrics.OutcomeMerged)
		return id, nil
	default:
		g.metrics.RecordNodeOperation(metrics.OutcomeConflict)
		return "", &ConflictError{
			Type:      c.Type,
			Candidate: c.Synonyms.Slice(),
			NodeIDs:   matched,
		}
	}
}

// resolveAll returns the distinct node ids that synonyms resolve to, in the
// order they were first hit.
func (g *KnowledgeGraph) resolveAll(synonyms []string) []string {
	var matched []string
	for _, s := range synonyms {
		id, ok := g.identity.Resolve(s)
		if !ok {
			continue
		}
		dup := false
		for _, m := range matched {
			if m == id {
				dup = true
				break
			}
		}
		if !dup {
			matched = append(matched, id)
		}
	}
	return matched
}

func (g *KnowledgeGraph) createNode(c *Node, presetID string) (string, error) {
	if !c.Type.Valid() {
		g.logger.Warn("dropping node with unsupported type",
			logging.NodeType(string(c.Type)),
			logging.Synonyms(c.Synonyms.Slice()))
		g.metrics.RecordNodeOperation(metrics.OutcomeDropped)
		return "", nil
	}

	id := ""
	if presetID != "" {
		if g.isFree(presetID) && g.nodes.claim(c.Type, presetID) {
			id = presetID
		} else {
			g.logger.Warn("snapshot node id unusable, allocating a new one",
				logging.NodeID(presetID),
				logging.NodeType(string(c.Type)))
		}
	}
	for id == "" || !g.isFree(id) {
		id = g.nodes.allocate(c.Type)
	}

	n := c.Clone()
	n.ID = id
	n.Synonyms.Add(id)
	for _, s := range n.Synonyms.items {
		if err := g.identity.Register(s, id); err != nil {
			return "", err
		}
	}
	g.nodes.insert(n)

	g.metrics.RecordNodeOperation(metrics.OutcomeCreated)
	g.metrics.SetGraphSize(g.nodes.len(), g.edges.len())
	return id, nil
}

func (g *KnowledgeGraph) isFree(id string) bool {
	_, bound := g.identity.Resolve(id)
	return !bound
}

// AddEdge resolves both endpoints of candidate (which may be any synonym)
// and stores or merges the edge. It returns the composite edge id and true
// on success. An edge with an unresolved endpoint or an empty predicate is
// dropped with a warning and AddEdge returns "", false. A nil candidate is
// logged as an error and returns "", false.
func (g *KnowledgeGraph) AddEdge(candidate *Edge) (string, bool) {
	if candidate == nil {
		g.logger.Error("refusing nil edge")
		g.metrics.RecordEdgeOperation(metrics.OutcomeDropped)
		return "", false
	}
	source, srcOK := g.identity.Resolve(candidate.Source)
	target, tgtOK := g.identity.Resolve(candidate.Target)
	if !srcOK || !tgtOK {
		g.logger.Warn("dropping edge with unresolved endpoint",
			logging.String("source", candidate.Source),
			logging.String("target", candidate.Target),
			logging.Bool("source_resolved", srcOK),
			logging.Bool("target_resolved", tgtOK),
			logging.Predicate(candidate.Predicate))
		g.metrics.RecordEdgeOperation(metrics.OutcomeDroppedUnresolved)
		return "", false
	}
	if candidate.Predicate == "" {
		g.logger.Warn("dropping edge with empty predicate",
			logging.String("source", source),
			logging.String("target", target))
		g.metrics.RecordEdgeOperation(metrics.OutcomeDroppedPredicate)
		return "", false
	}

	id := EdgeID(source, candidate.Predicate, target)
	if existing, ok := g.edges.get(id); ok {
		existing.KnowledgeSources.AddAll(candidate.KnowledgeSources)
		existing.Description.MergeAll(candidate.Description)
		g.metrics.RecordEdgeOperation(metrics.OutcomeMerged)
		return id, true
	}

	e := candidate.Clone()
	e.ID = id
	e.Source = source
	e.Target = target
	g.edges.insert(e)

	g.metrics.RecordEdgeOperation(metrics.OutcomeCreated)
	g.metrics.SetGraphSize(g.nodes.len(), g.edges.len())
	return id, true
}

// FindNodeBySynonym returns the canonical id owning synonym.
func (g *KnowledgeGraph) FindNodeBySynonym(synonym string) (string, bool) {
	return g.identity.Resolve(synonym)
}

// GetNodeByID returns a copy of the node identified by id. Any synonym is
// accepted, since every node id is also a synonym of itself.
func (g *KnowledgeGraph) GetNodeByID(id string) (*Node, bool) {
	canonical, ok := g.identity.Resolve(id)
	if !ok {
		return nil, false
	}
	n, ok := g.nodes.get(canonical)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// GetEdgeByID returns a copy of the edge with the given composite id.
func (g *KnowledgeGraph) GetEdgeByID(id string) (*Edge, bool) {
	e, ok := g.edges.get(id)
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// GetNodesByType returns copies of every node of type t in creation order.
func (g *KnowledgeGraph) GetNodesByType(t NodeType) []*Node {
	ids := g.nodes.byType[t]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes.nodes[id].Clone())
	}
	return out
}

// FindAllOutEdges returns copies of every edge whose source is the node
// identified by id (any synonym).
func (g *KnowledgeGraph) FindAllOutEdges(id string) []*Edge {
	canonical, ok := g.identity.Resolve(id)
	if !ok {
		return nil
	}
	return cloneEdges(g.edges.outgoing(canonical))
}

// FindAllInEdges returns copies of every edge whose target is the node
// identified by id (any synonym).
func (g *KnowledgeGraph) FindAllInEdges(id string) []*Edge {
	canonical, ok := g.identity.Resolve(id)
	if !ok {
		return nil
	}
	return cloneEdges(g.edges.incoming(canonical))
}

func (g *KnowledgeGraph) CountNodes() int {
	return g.nodes.len()
}

func (g *KnowledgeGraph) CountEdges() int {
	return g.edges.len()
}

// CountByType returns the number of nodes of each type present.
func (g *KnowledgeGraph) CountByType() map[NodeType]int {
	counts := make(map[NodeType]int, len(g.nodes.byType))
	for t, ids := range g.nodes.byType {
		counts[t] = len(ids)
	}
	return counts
}

// Nodes returns copies of every node in creation order.
func (g *KnowledgeGraph) Nodes() []*Node {
	out := make([]*Node, 0, g.nodes.len())
	g.ForEachNode(func(n *Node) bool {
		out = append(out, n.Clone())
		return true
	})
	return out
}

// Edges returns copies of every edge in creation order.
func (g *KnowledgeGraph) Edges() []*Edge {
	out := make([]*Edge, 0, g.edges.len())
	g.ForEachEdge(func(e *Edge) bool {
		out = append(out, e.Clone())
		return true
	})
	return out
}

// ForEachNode calls fn for every node in creation order until fn returns
// false. The node passed to fn is owned by the graph and must not be
// modified or retained.
func (g *KnowledgeGraph) ForEachNode(fn func(*Node) bool) {
	for _, id := range g.nodes.order {
		if !fn(g.nodes.nodes[id]) {
			return
		}
	}
}

// ForEachEdge calls fn for every edge in creation order until fn returns
// false. The same ownership rules as ForEachNode apply.
func (g *KnowledgeGraph) ForEachEdge(fn func(*Edge) bool) {
	for _, id := range g.edges.order {
		if !fn(g.edges.edges[id]) {
			return
		}
	}
}

// SearchNodes returns copies of nodes whose id, synonyms or names contain
// query, up to limit results, sorted by id.
func (g *KnowledgeGraph) SearchNodes(query string, limit int) []*Node {
	if query == "" {
		return nil
	}
	var out []*Node
	g.ForEachNode(func(n *Node) bool {
		if nodeMatches(n, query) {
			out = append(out, n.Clone())
		}
		return limit <= 0 || len(out) < limit
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func nodeMatches(n *Node, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(n.ID), q) {
		return true
	}
	for _, s := range n.Synonyms.items {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	for _, s := range n.Names.items {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func cloneEdges(edges []*Edge) []*Edge {
	out := make([]*Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Clone())
	}
	return out
}
