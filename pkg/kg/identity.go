package kg

import "strings"

const (
	genbankMarker = ":GCA_"
	refseqMarker  = ":GCF_"
)

// IdentityIndex maps every known synonym to the canonical id of the node
// that owns it. A synonym is bound to at most one node and is never unbound.
type IdentityIndex struct {
	bySynonym map[string]string
	byNode    map[string][]string
}

// NewIdentityIndex creates an empty index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{
		bySynonym: make(map[string]string),
		byNode:    make(map[string][]string),
	}
}

// Resolve returns the node id bound to synonym. A GenBank assembly accession
// (":GCA_") and its RefSeq twin (":GCF_") are treated as equivalent, with
// the exact spelling tried first.
func (x *IdentityIndex) Resolve(synonym string) (string, bool) {
	if synonym == "" {
		return "", false
	}
	if id, ok := x.bySynonym[synonym]; ok {
		return id, true
	}
	if alt, ok := assemblyTwin(synonym); ok {
		if id, ok := x.bySynonym[alt]; ok {
			return id, true
		}
	}
	return "", false
}

// Register binds synonym to id. Re-binding a synonym to the same id is a
// no-op; binding it to a different id fails with ErrSynonymRebound.
func (x *IdentityIndex) Register(synonym, id string) error {
	if synonym == "" {
		return nil
	}
	if owner, ok := x.bySynonym[synonym]; ok {
		if owner != id {
			return NewError("register").Synonym(synonym).
				Context("owned by " + owner + ", requested " + id).
				Cause(ErrSynonymRebound).Err()
		}
		return nil
	}
	x.bySynonym[synonym] = id
	x.byNode[id] = append(x.byNode[id], synonym)
	return nil
}

// SynonymsOf returns the synonyms bound to id in registration order.
func (x *IdentityIndex) SynonymsOf(id string) []string {
	return append([]string(nil), x.byNode[id]...)
}

// Len returns the number of bound synonyms.
func (x *IdentityIndex) Len() int {
	return len(x.bySynonym)
}

func assemblyTwin(synonym string) (string, bool) {
	switch {
	case strings.Contains(synonym, refseqMarker):
		return strings.ReplaceAll(synonym, refseqMarker, genbankMarker), true
	case strings.Contains(synonym, genbankMarker):
		return strings.ReplaceAll(synonym, genbankMarker, refseqMarker), true
	}
	return "", false
}
