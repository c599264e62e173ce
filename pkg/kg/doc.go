// Package kg is the incremental knowledge-graph merge engine.
//
// Every integration pass loads the previous snapshot, replays its own source
// records through AddNode and AddEdge, and saves the next snapshot. Identity
// is decided solely by synonyms: a candidate node that shares a synonym with
// exactly one existing node is merged into it, one that shares none becomes a
// new node, and one that bridges two existing nodes is rejected with a
// ConflictError. The graph only grows; nothing is ever deleted.
//
// A KnowledgeGraph is not safe for concurrent use.
package kg
