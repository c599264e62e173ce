package kg

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one deduplicated entity. Candidates passed to AddNode use the same
// type; their ID is ignored.
type Node struct {
	ID               string
	Type             NodeType
	Names            StringSet
	Description      Attributes
	KnowledgeSources StringSet
	Links            StringSet
	Synonyms         StringSet
	IsPathogen       bool
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{
		ID:               n.ID,
		Type:             n.Type,
		Names:            n.Names.Clone(),
		Description:      n.Description.Clone(),
		KnowledgeSources: n.KnowledgeSources.Clone(),
		Links:            n.Links.Clone(),
		Synonyms:         n.Synonyms.Clone(),
		IsPathogen:       n.IsPathogen,
	}
}

// absorb unions every field of c into n and returns the synonyms that were
// new to n.
func (n *Node) absorb(c *Node) []string {
	var added []string
	for _, s := range c.Synonyms.items {
		if n.Synonyms.Add(s) {
			added = append(added, s)
		}
	}
	n.Names.AddAll(c.Names)
	n.Description.MergeAll(c.Description)
	n.KnowledgeSources.AddAll(c.KnowledgeSources)
	n.Links.AddAll(c.Links)
	n.IsPathogen = n.IsPathogen || c.IsPathogen
	return added
}

// NodeStore holds nodes by canonical id and owns the per-type id counters.
type NodeStore struct {
	nodes    map[string]*Node
	order    []string
	byType   map[NodeType][]string
	counters map[NodeType]int
}

func newNodeStore() *NodeStore {
	return &NodeStore{
		nodes:    make(map[string]*Node),
		byType:   make(map[NodeType][]string),
		counters: make(map[NodeType]int),
	}
}

func (s *NodeStore) get(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *NodeStore) insert(n *Node) {
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	s.byType[n.Type] = append(s.byType[n.Type], n.ID)
}

// allocate returns the next "{Type}:{n}" id for t.
func (s *NodeStore) allocate(t NodeType) string {
	s.counters[t]++
	return FormatNodeID(t, s.counters[t])
}

// claim reserves a preset id for t during a replay load. It succeeds only if
// the id is well formed for t and not yet used; the counter for t is
// advanced past it so later allocations never collide.
func (s *NodeStore) claim(t NodeType, id string) bool {
	pt, n, err := ParseNodeID(id)
	if err != nil || pt != t {
		return false
	}
	if _, exists := s.nodes[id]; exists {
		return false
	}
	if n > s.counters[t] {
		s.counters[t] = n
	}
	return true
}

func (s *NodeStore) len() int {
	return len(s.order)
}

// FormatNodeID renders a canonical node id.
func FormatNodeID(t NodeType, n int) string {
	return fmt.Sprintf("%s:%d", t, n)
}

// ParseNodeID splits a canonical node id into its type and sequence number.
func ParseNodeID(id string) (NodeType, int, error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("node id %q: missing type prefix", id)
	}
	t := NodeType(id[:i])
	if !t.Valid() {
		return "", 0, fmt.Errorf("node id %q: %w", id, ErrUnsupportedNodeType)
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("node id %q: sequence must be a positive integer", id)
	}
	return t, n, nil
}
