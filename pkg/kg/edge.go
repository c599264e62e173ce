package kg

// Edge is a directed, typed relation between two canonical node ids.
type Edge struct {
	ID               string
	Source           string
	Target           string
	Predicate        string
	Description      Attributes
	KnowledgeSources StringSet
}

// EdgeID is the deterministic composite key of an edge.
func EdgeID(source, predicate, target string) string {
	return source + "_" + predicate + "_" + target
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	return &Edge{
		ID:               e.ID,
		Source:           e.Source,
		Target:           e.Target,
		Predicate:        e.Predicate,
		Description:      e.Description.Clone(),
		KnowledgeSources: e.KnowledgeSources.Clone(),
	}
}

type nodePair struct {
	source, target string
}

// EdgeStore holds edges by composite id plus the adjacency indices used for
// traversal. between records every predicate seen for a (source, target)
// pair so that neighbour lookups can materialize each distinct edge.
type EdgeStore struct {
	edges   map[string]*Edge
	order   []string
	out     map[string]*StringSet
	in      map[string]*StringSet
	between map[nodePair]*StringSet
}

func newEdgeStore() *EdgeStore {
	return &EdgeStore{
		edges:   make(map[string]*Edge),
		out:     make(map[string]*StringSet),
		in:      make(map[string]*StringSet),
		between: make(map[nodePair]*StringSet),
	}
}

func (s *EdgeStore) get(id string) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

func (s *EdgeStore) insert(e *Edge) {
	s.edges[e.ID] = e
	s.order = append(s.order, e.ID)
	setFor(s.out, e.Source).Add(e.Target)
	setFor(s.in, e.Target).Add(e.Source)
	pair := nodePair{e.Source, e.Target}
	preds, ok := s.between[pair]
	if !ok {
		preds = &StringSet{}
		s.between[pair] = preds
	}
	preds.Add(e.Predicate)
}

// outgoing returns every edge leaving id, grouped by target in adjacency order.
func (s *EdgeStore) outgoing(id string) []*Edge {
	targets, ok := s.out[id]
	if !ok {
		return nil
	}
	var edges []*Edge
	for _, t := range targets.items {
		edges = s.appendBetween(edges, id, t)
	}
	return edges
}

// incoming returns every edge entering id, grouped by source in adjacency order.
func (s *EdgeStore) incoming(id string) []*Edge {
	sources, ok := s.in[id]
	if !ok {
		return nil
	}
	var edges []*Edge
	for _, src := range sources.items {
		edges = s.appendBetween(edges, src, id)
	}
	return edges
}

func (s *EdgeStore) appendBetween(edges []*Edge, source, target string) []*Edge {
	preds := s.between[nodePair{source, target}]
	if preds == nil {
		return edges
	}
	for _, p := range preds.items {
		if e, ok := s.edges[EdgeID(source, p, target)]; ok {
			edges = append(edges, e)
		}
	}
	return edges
}

func (s *EdgeStore) len() int {
	return len(s.order)
}

func setFor(m map[string]*StringSet, key string) *StringSet {
	set, ok := m[key]
	if !ok {
		set = &StringSet{}
		m[key] = set
	}
	return set
}
