// Package graphql exposes a loaded knowledge graph snapshot through a
// read-only GraphQL schema.
package graphql

import (
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/microbekg/pkg/kg"
)

// Graph is the read side of the knowledge graph the schema serves.
type Graph interface {
	GetNodeByID(id string) (*kg.Node, bool)
	GetEdgeByID(id string) (*kg.Edge, bool)
	GetNodesByType(t kg.NodeType) []*kg.Node
	FindAllOutEdges(id string) []*kg.Edge
	FindAllInEdges(id string) []*kg.Edge
	SearchNodes(query string, limit int) []*kg.Node
	CountNodes() int
	CountEdges() int
	CountByType() map[kg.NodeType]int
}

// GenerateSchema builds the query schema for g. The graph must not be
// mutated while the schema is serving requests.
func GenerateSchema(g Graph, config *LimitConfig) (graphql.Schema, error) {
	if config == nil {
		config = DefaultLimitConfig()
	}
	if err := ValidateLimitConfig(config); err != nil {
		return graphql.Schema{}, err
	}

	nodeType := createNodeType()
	edgeType := createEdgeType(g, nodeType)
	attachEdgeFields(g, nodeType, edgeType, config)

	limitArgs := graphql.FieldConfigArgument{
		"limit": &graphql.ArgumentConfig{Type: graphql.Int},
	}

	queryFields := graphql.Fields{
		"health": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return "ok", nil
			},
		},
		// node(id: ID!) accepts the canonical id or any synonym.
		"node": &graphql.Field{
			Type: nodeType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, ok := p.Args["id"].(string)
				if !ok {
					return nil, fmt.Errorf("id argument is required")
				}
				if n, found := g.GetNodeByID(id); found {
					return n, nil
				}
				return nil, nil
			},
		},
		"edge": &graphql.Field{
			Type: edgeType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, _ := p.Args["id"].(string)
				if e, found := g.GetEdgeByID(id); found {
					return e, nil
				}
				return nil, nil
			},
		},
		"nodes": &graphql.Field{
			Type: graphql.NewList(nodeType),
			Args: graphql.FieldConfigArgument{
				"type":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"limit": &graphql.ArgumentConfig{Type: graphql.Int},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				raw, _ := p.Args["type"].(string)
				t, ok := kg.ParseNodeType(raw)
				if !ok {
					return nil, fmt.Errorf("unknown node type %q", raw)
				}
				return truncate(g.GetNodesByType(t), applyLimit(limitArg(p.Args), config)), nil
			},
		},
		"search": &graphql.Field{
			Type: graphql.NewList(nodeType),
			Args: graphql.FieldConfigArgument{
				"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"limit": limitArgs["limit"],
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				q, _ := p.Args["query"].(string)
				limit := applyLimit(limitArg(p.Args), config)
				if limit == 0 {
					return []*kg.Node{}, nil
				}
				return g.SearchNodes(q, limit), nil
			},
		},
		"stats": &graphql.Field{
			Type: statsType,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return statsOf(g), nil
			},
		},
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}

func statsOf(g Graph) map[string]any {
	counts := g.CountByType()
	types := make([]kg.NodeType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	byType := make([]map[string]any, 0, len(types))
	for _, t := range types {
		byType = append(byType, map[string]any{
			"type":     t.String(),
			"category": t.Category(),
			"count":    counts[t],
		})
	}
	return map[string]any{
		"nodes":  g.CountNodes(),
		"edges":  g.CountEdges(),
		"byType": byType,
	}
}
