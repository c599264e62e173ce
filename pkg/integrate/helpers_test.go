package integrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dd0wney/microbekg/pkg/kg"
)

// writeTSV writes rows (tab-joined) to dir/name and returns the path.
func writeTSV(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func row(cells ...string) string {
	return strings.Join(cells, "\t")
}

func mustAdd(t *testing.T, g *kg.KnowledgeGraph, typ kg.NodeType, name string, synonyms ...string) string {
	t.Helper()
	id, err := g.AddNode(&kg.Node{Type: typ, Names: kg.NewStringSet(name), Synonyms: kg.NewStringSet(synonyms...)})
	if err != nil || id == "" {
		t.Fatalf("AddNode(%v) = %q, %v", synonyms, id, err)
	}
	return id
}

func mustResolve(t *testing.T, g *kg.KnowledgeGraph, synonym string) string {
	t.Helper()
	id, ok := g.FindNodeBySynonym(synonym)
	if !ok {
		t.Fatalf("Expected %s to resolve", synonym)
	}
	return id
}

func hasEdge(g *kg.KnowledgeGraph, src, pred, dst string) bool {
	_, ok := g.GetEdgeByID(kg.EdgeID(src, pred, dst))
	return ok
}
