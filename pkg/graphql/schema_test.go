package graphql

import (
	"fmt"
	"testing"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/microbekg/pkg/kg"
)

// newTestGraph builds E. coli (Microbe:1) associated with sepsis
// (Disease:1) both ways, plus count extra microbes.
func newTestGraph(t *testing.T, extra int) *kg.KnowledgeGraph {
	t.Helper()
	g := kg.New(kg.Config{})
	for _, n := range []*kg.Node{
		{Type: kg.Microbe, Names: kg.NewStringSet("Escherichia coli"), Synonyms: kg.NewStringSet("NCBI:562"),
			Description: kg.NewAttributes(kg.Attr("rank", "species")), IsPathogen: true},
		{Type: kg.Disease, Names: kg.NewStringSet("sepsis"), Synonyms: kg.NewStringSet("UMLS:C0243026")},
	} {
		if _, err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < extra; i++ {
		if _, err := g.AddNode(&kg.Node{Type: kg.Microbe, Synonyms: kg.NewStringSet(fmt.Sprintf("NCBI:%d", 1000+i))}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range []*kg.Edge{
		{Source: "NCBI:562", Target: "UMLS:C0243026", Predicate: "biolink:associated_with", KnowledgeSources: kg.NewStringSet("BVBRC")},
		{Source: "UMLS:C0243026", Target: "NCBI:562", Predicate: "biolink:associated_with", KnowledgeSources: kg.NewStringSet("BVBRC")},
	} {
		if _, ok := g.AddEdge(e); !ok {
			t.Fatal("AddEdge failed")
		}
	}
	return g
}

func mustSchema(t *testing.T, g Graph, config *LimitConfig) graphql.Schema {
	t.Helper()
	schema, err := GenerateSchema(g, config)
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	return schema
}

func run(t *testing.T, schema graphql.Schema, query string) map[string]any {
	t.Helper()
	result := ExecuteQuery(query, schema)
	if result.HasErrors() {
		t.Fatalf("GraphQL query failed: %v", result.Errors)
	}
	return result.Data.(map[string]any)
}

func TestNodeBySynonym(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 0), nil)

	data := run(t, schema, `{ node(id: "NCBI:562") { id type category names isPathogen description { key value } } }`)
	node := data["node"].(map[string]any)
	if node["id"] != "Microbe:1" {
		t.Errorf("Expected Microbe:1, got %v", node["id"])
	}
	if node["category"] != "biolink:OrganismTaxon" {
		t.Errorf("Expected biolink:OrganismTaxon, got %v", node["category"])
	}
	if node["isPathogen"] != true {
		t.Error("Expected isPathogen true")
	}
	desc := node["description"].([]any)
	if len(desc) != 1 || desc[0].(map[string]any)["value"] != "species" {
		t.Errorf("Unexpected description %v", desc)
	}
}

func TestUnknownNodeIsNull(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 0), nil)
	data := run(t, schema, `{ node(id: "NCBI:0") { id } }`)
	if data["node"] != nil {
		t.Errorf("Expected null, got %v", data["node"])
	}
}

func TestEdgesTraversal(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 0), nil)

	data := run(t, schema, `{
		node(id: "Microbe:1") {
			outEdges(predicate: "biolink:associated_with") { predicate knowledgeSources target { id names } }
			inEdges { sourceId }
		}
	}`)
	node := data["node"].(map[string]any)
	out := node["outEdges"].([]any)
	if len(out) != 1 {
		t.Fatalf("Expected 1 out edge, got %d", len(out))
	}
	target := out[0].(map[string]any)["target"].(map[string]any)
	if target["id"] != "Disease:1" {
		t.Errorf("Expected Disease:1, got %v", target["id"])
	}
	in := node["inEdges"].([]any)
	if len(in) != 1 || in[0].(map[string]any)["sourceId"] != "Disease:1" {
		t.Errorf("Unexpected in edges %v", in)
	}

	data = run(t, schema, `{ node(id: "Microbe:1") { outEdges(predicate: "biolink:has_part") { id } } }`)
	if out := data["node"].(map[string]any)["outEdges"].([]any); len(out) != 0 {
		t.Errorf("Expected predicate filter to drop edges, got %v", out)
	}
}

func TestEdgeByID(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 0), nil)
	id := kg.EdgeID("Microbe:1", "biolink:associated_with", "Disease:1")
	data := run(t, schema, fmt.Sprintf(`{ edge(id: %q) { predicate source { id } } }`, id))
	edge := data["edge"].(map[string]any)
	if edge["source"].(map[string]any)["id"] != "Microbe:1" {
		t.Errorf("Unexpected edge %v", edge)
	}
}

func TestSearchAndStats(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 3), nil)

	data := run(t, schema, `{ search(query: "coli") { id } stats { nodes edges byType { type count } } }`)
	hits := data["search"].([]any)
	if len(hits) != 1 || hits[0].(map[string]any)["id"] != "Microbe:1" {
		t.Errorf("Unexpected search hits %v", hits)
	}

	stats := data["stats"].(map[string]any)
	if stats["nodes"] != 5 || stats["edges"] != 2 {
		t.Errorf("Expected 5 nodes and 2 edges, got %v", stats)
	}
	byType := stats["byType"].([]any)
	if len(byType) != 2 {
		t.Fatalf("Expected 2 types, got %v", byType)
	}
	first := byType[0].(map[string]any)
	if first["type"] != "Disease" || first["count"] != 1 {
		t.Errorf("Expected Disease first with 1 node, got %v", first)
	}
}

func TestNodesByUnknownType(t *testing.T) {
	schema := mustSchema(t, newTestGraph(t, 0), nil)
	result := ExecuteQuery(`{ nodes(type: "Planet") { id } }`, schema)
	if !result.HasErrors() {
		t.Fatal("Expected error for unknown type")
	}
}
