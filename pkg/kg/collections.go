package kg

import (
	"strings"
)

// DescriptionDelimiter joins distinct values recorded under one description key.
const DescriptionDelimiter = "#####"

// StringSet is an insertion-ordered set of non-empty strings.
// The zero value is ready to use.
type StringSet struct {
	items []string
	index map[string]struct{}
}

// NewStringSet builds a set from items, skipping empties and duplicates.
func NewStringSet(items ...string) StringSet {
	var s StringSet
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *StringSet) Add(item string) bool {
	if item == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// AddAll inserts every item of other and returns how many were new.
func (s *StringSet) AddAll(other StringSet) int {
	added := 0
	for _, item := range other.items {
		if s.Add(item) {
			added++
		}
	}
	return added
}

func (s StringSet) Contains(item string) bool {
	_, ok := s.index[item]
	return ok
}

func (s StringSet) Len() int {
	return len(s.items)
}

// Slice returns a copy of the items in insertion order.
func (s StringSet) Slice() []string {
	return append([]string(nil), s.items...)
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	return NewStringSet(s.items...)
}

// Attribute is one (key, value) description pair.
type Attribute struct {
	Key   string
	Value string
}

// Attr is shorthand for building an Attribute.
func Attr(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Attributes is an ordered description keyed by attribute name. Merging a
// value under an existing key keeps every distinct value, joined with
// DescriptionDelimiter. Empty values never displace or extend real ones.
type Attributes struct {
	pairs []Attribute
	index map[string]int
}

// NewAttributes builds a description from pairs, merging repeated keys.
func NewAttributes(pairs ...Attribute) Attributes {
	var a Attributes
	for _, p := range pairs {
		a.Merge(p.Key, p.Value)
	}
	return a
}

// Merge records value under key and reports whether the description changed.
func (a *Attributes) Merge(key, value string) bool {
	if a.index == nil {
		a.index = make(map[string]int)
	}
	i, ok := a.index[key]
	if !ok {
		a.index[key] = len(a.pairs)
		a.pairs = append(a.pairs, Attribute{Key: key, Value: value})
		return true
	}

	existing := a.pairs[i].Value
	if value == "" || value == existing {
		return false
	}
	if existing == "" {
		a.pairs[i].Value = value
		return true
	}

	parts := strings.Split(existing, DescriptionDelimiter)
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		seen[p] = struct{}{}
	}
	changed := false
	for _, p := range strings.Split(value, DescriptionDelimiter) {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		parts = append(parts, p)
		changed = true
	}
	if changed {
		a.pairs[i].Value = strings.Join(parts, DescriptionDelimiter)
	}
	return changed
}

// MergeAll merges every pair of other in order.
func (a *Attributes) MergeAll(other Attributes) {
	for _, p := range other.pairs {
		a.Merge(p.Key, p.Value)
	}
}

// Get returns the (possibly delimiter-joined) value stored under key.
func (a Attributes) Get(key string) (string, bool) {
	i, ok := a.index[key]
	if !ok {
		return "", false
	}
	return a.pairs[i].Value, true
}

// Values splits the value under key into its distinct parts.
func (a Attributes) Values(key string) []string {
	v, ok := a.Get(key)
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, DescriptionDelimiter)
}

func (a Attributes) Len() int {
	return len(a.pairs)
}

// Pairs returns a copy of the pairs in insertion order.
func (a Attributes) Pairs() []Attribute {
	return append([]Attribute(nil), a.pairs...)
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	return NewAttributes(a.pairs...)
}
