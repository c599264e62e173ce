package kg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrEdgeNotFound        = errors.New("edge not found")
	ErrIdentityConflict    = errors.New("synonyms resolve to more than one node")
	ErrSynonymRebound      = errors.New("synonym already bound to another node")
	ErrUnsupportedNodeType = errors.New("unsupported node type")
	ErrUnresolvedEndpoint  = errors.New("edge endpoint does not resolve to a node")
	ErrMissingPredicate    = errors.New("edge predicate is empty")
	ErrMalformedRow        = errors.New("malformed snapshot row")
	ErrMissingFile         = errors.New("required input file is missing")
	ErrInvalidLiteral      = errors.New("invalid list literal")
)

// GraphError carries structured context for a failed graph operation.
type GraphError struct {
	Op      string // e.g. "add_node", "load_graph"
	Entity  string // "node", "edge", "synonym", "snapshot"
	ID      string
	Field   string // snapshot column, if any
	Line    int    // 1-based snapshot line, 0 if not applicable
	Cause   error
	Context string
}

func (e *GraphError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
	}
	if e.ID != "" {
		b.WriteString(" ")
		b.WriteString(e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, " (%s)", e.Context)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	return b.String()
}

func (e *GraphError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for building GraphErrors.
type ErrorBuilder struct {
	err GraphError
}

// NewError starts a GraphError for op.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: GraphError{Op: op}}
}

func (b *ErrorBuilder) Node(id string) *ErrorBuilder {
	b.err.Entity = "node"
	b.err.ID = id
	return b
}

func (b *ErrorBuilder) Edge(id string) *ErrorBuilder {
	b.err.Entity = "edge"
	b.err.ID = id
	return b
}

func (b *ErrorBuilder) Synonym(s string) *ErrorBuilder {
	b.err.Entity = "synonym"
	b.err.ID = s
	return b
}

// Snapshot marks the error as coming from line of the snapshot file path.
func (b *ErrorBuilder) Snapshot(path string, line int) *ErrorBuilder {
	b.err.Entity = "snapshot"
	b.err.ID = path
	b.err.Line = line
	return b
}

func (b *ErrorBuilder) Field(name string) *ErrorBuilder {
	b.err.Field = name
	return b
}

func (b *ErrorBuilder) Context(ctx string) *ErrorBuilder {
	b.err.Context = ctx
	return b
}

func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

func (b *ErrorBuilder) Build() *GraphError {
	return &b.err
}

func (b *ErrorBuilder) Err() error {
	return &b.err
}

// ConflictError reports a candidate whose synonyms resolve to several
// existing nodes. The candidate is not applied.
type ConflictError struct {
	Type      NodeType
	Candidate []string // candidate synonyms
	NodeIDs   []string // distinct existing nodes they resolve to
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s candidate %v matches %v",
		ErrIdentityConflict, e.Type, e.Candidate, e.NodeIDs)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrIdentityConflict
}

// NodeNotFoundError creates a node lookup error.
func NodeNotFoundError(id string) error {
	return NewError("get").Node(id).Cause(ErrNodeNotFound).Err()
}

// EdgeNotFoundError creates an edge lookup error.
func EdgeNotFoundError(id string) error {
	return NewError("get").Edge(id).Cause(ErrEdgeNotFound).Err()
}

// RowError wraps a parse failure in column field at a given snapshot line.
func RowError(op, path string, line int, field string, cause error) error {
	return NewError(op).Snapshot(path, line).Field(field).
		Cause(fmt.Errorf("%w: %w", ErrMalformedRow, cause)).Err()
}

// IsConflict reports whether err is an identity conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIdentityConflict)
}
