package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/dd0wney/microbekg/pkg/kg"
)

var attributeType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Attribute",
	Description: "One description entry; repeated values are joined with #####",
	Fields: graphql.Fields{
		"key": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if a, ok := p.Source.(kg.Attribute); ok {
					return a.Key, nil
				}
				return nil, nil
			},
		},
		"value": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if a, ok := p.Source.(kg.Attribute); ok {
					return a.Value, nil
				}
				return nil, nil
			},
		},
	},
})

var typeCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "TypeCount",
	Fields: graphql.Fields{
		"type":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"category": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"count":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Stats",
	Fields: graphql.Fields{
		"nodes":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"edges":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"byType": &graphql.Field{Type: graphql.NewList(typeCountType)},
	},
})

func nodeField(name string) *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewList(graphql.String),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			n, ok := p.Source.(*kg.Node)
			if !ok {
				return nil, nil
			}
			switch name {
			case "names":
				return n.Names.Slice(), nil
			case "synonyms":
				return n.Synonyms.Slice(), nil
			case "knowledgeSources":
				return n.KnowledgeSources.Slice(), nil
			case "links":
				return n.Links.Slice(), nil
			}
			return nil, nil
		},
	}
}

// createNodeType creates the Node object. Edge fields are attached later by
// attachEdgeFields, since Node and Edge refer to each other.
func createNodeType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Node",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if n, ok := p.Source.(*kg.Node); ok {
						return n.ID, nil
					}
					return nil, nil
				},
			},
			"type": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if n, ok := p.Source.(*kg.Node); ok {
						return n.Type.String(), nil
					}
					return nil, nil
				},
			},
			"category": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if n, ok := p.Source.(*kg.Node); ok {
						return n.Type.Category(), nil
					}
					return nil, nil
				},
			},
			"names":            nodeField("names"),
			"synonyms":         nodeField("synonyms"),
			"knowledgeSources": nodeField("knowledgeSources"),
			"links":            nodeField("links"),
			"description": &graphql.Field{
				Type: graphql.NewList(attributeType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if n, ok := p.Source.(*kg.Node); ok {
						return n.Description.Pairs(), nil
					}
					return nil, nil
				},
			},
			"isPathogen": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if n, ok := p.Source.(*kg.Node); ok {
						return n.IsPathogen, nil
					}
					return false, nil
				},
			},
		},
	})
}

// createEdgeType creates a GraphQL type for edges
func createEdgeType(g Graph, nodeType *graphql.Object) *graphql.Object {
	endpoint := func(pick func(*kg.Edge) string) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (any, error) {
			e, ok := p.Source.(*kg.Edge)
			if !ok {
				return nil, nil
			}
			if n, found := g.GetNodeByID(pick(e)); found {
				return n, nil
			}
			return nil, nil
		}
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Edge",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.ID, nil
					}
					return nil, nil
				},
			},
			"predicate": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.Predicate, nil
					}
					return nil, nil
				},
			},
			"sourceId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.Source, nil
					}
					return nil, nil
				},
			},
			"targetId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.Target, nil
					}
					return nil, nil
				},
			},
			"knowledgeSources": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.KnowledgeSources.Slice(), nil
					}
					return nil, nil
				},
			},
			"description": &graphql.Field{
				Type: graphql.NewList(attributeType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := p.Source.(*kg.Edge); ok {
						return e.Description.Pairs(), nil
					}
					return nil, nil
				},
			},
			"source": &graphql.Field{Type: nodeType, Resolve: endpoint(func(e *kg.Edge) string { return e.Source })},
			"target": &graphql.Field{Type: nodeType, Resolve: endpoint(func(e *kg.Edge) string { return e.Target })},
		},
	})
}

// attachEdgeFields adds outEdges and inEdges to the node type.
func attachEdgeFields(g Graph, nodeType, edgeType *graphql.Object, config *LimitConfig) {
	args := graphql.FieldConfigArgument{
		"predicate": &graphql.ArgumentConfig{Type: graphql.String},
		"limit":     &graphql.ArgumentConfig{Type: graphql.Int},
	}
	adjacency := func(find func(string) []*kg.Edge) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (any, error) {
			n, ok := p.Source.(*kg.Node)
			if !ok {
				return nil, nil
			}
			edges := find(n.ID)
			if pred, ok := p.Args["predicate"].(string); ok && pred != "" {
				kept := edges[:0]
				for _, e := range edges {
					if e.Predicate == pred {
						kept = append(kept, e)
					}
				}
				edges = kept
			}
			return truncate(edges, applyLimit(limitArg(p.Args), config)), nil
		}
	}
	nodeType.AddFieldConfig("outEdges", &graphql.Field{
		Type:    graphql.NewList(edgeType),
		Args:    args,
		Resolve: adjacency(g.FindAllOutEdges),
	})
	nodeType.AddFieldConfig("inEdges", &graphql.Field{
		Type:    graphql.NewList(edgeType),
		Args:    args,
		Resolve: adjacency(g.FindAllInEdges),
	})
}
