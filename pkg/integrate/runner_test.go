package integrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

type funcPass struct {
	name    string
	version int
	run     func(ctx context.Context, g *kg.KnowledgeGraph) error
}

func (p *funcPass) Name() string { return p.name }
func (p *funcPass) Version() int { return p.version }
func (p *funcPass) Run(ctx context.Context, g *kg.KnowledgeGraph, _ logging.Logger) error {
	return p.run(ctx, g)
}

type fakePublisher struct {
	version int
	paths   []string
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, version int, paths ...string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.version = version
	f.paths = paths
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = "kg/" + filepath.Base(p)
	}
	return keys, nil
}

func addMicrobe(name string) func(context.Context, *kg.KnowledgeGraph) error {
	return func(_ context.Context, g *kg.KnowledgeGraph) error {
		_, err := g.AddNode(&kg.Node{Type: kg.Microbe, Names: kg.NewStringSet(name), Synonyms: kg.NewStringSet("NCBI:" + name)})
		return err
	}
}

func TestSnapshotNames(t *testing.T) {
	if NodeSnapshotName(3) != "KG_nodes_v3.tsv" || EdgeSnapshotName(3) != "KG_edges_v3.tsv" {
		t.Errorf("Unexpected snapshot names %s %s", NodeSnapshotName(3), EdgeSnapshotName(3))
	}
}

func TestRunnerFromEmpty(t *testing.T) {
	dir := t.TempDir()
	reg := metrics.NewRegistry()
	pub := &fakePublisher{}
	r := &Runner{
		OutputDir:   dir,
		Metrics:     reg,
		MetricsFile: filepath.Join(dir, "kg.prom"),
		Publisher:   pub,
	}

	res, err := r.Run(context.Background(), &funcPass{name: "seed", version: 1, run: addMicrobe("562")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Version != 1 || res.Nodes != 1 || res.Edges != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.RunID == "" {
		t.Error("Expected a run id")
	}
	if res.NodesPath != filepath.Join(dir, "KG_nodes_v1.tsv") {
		t.Errorf("Unexpected nodes path %s", res.NodesPath)
	}
	if _, err := os.Stat(res.EdgesPath); err != nil {
		t.Errorf("Expected edge snapshot: %v", err)
	}

	if pub.version != 1 || len(pub.paths) != 2 {
		t.Errorf("Expected both files published for v1, got v%d %v", pub.version, pub.paths)
	}
	if len(res.Published) != 2 || res.Published[0] != "kg/KG_nodes_v1.tsv" {
		t.Errorf("Unexpected published keys %v", res.Published)
	}

	prom, err := os.ReadFile(r.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), "kg_pass_snapshot_version 1") {
		t.Errorf("metrics textfile missing pass version:\n%s", prom)
	}
}

func TestRunnerLoadsPriorSnapshot(t *testing.T) {
	dir := t.TempDir()
	first := &Runner{OutputDir: dir}
	if _, err := first.Run(context.Background(), &funcPass{name: "seed", version: 1, run: addMicrobe("562")}); err != nil {
		t.Fatal(err)
	}

	second := &Runner{
		ExistingNodes: filepath.Join(dir, NodeSnapshotName(1)),
		ExistingEdges: filepath.Join(dir, EdgeSnapshotName(1)),
		OutputDir:     dir,
		Version:       7,
	}
	res, err := second.Run(context.Background(), &funcPass{name: "more", version: 2, run: addMicrobe("1280")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Version != 7 || res.Nodes != 2 {
		t.Errorf("Expected 2 nodes in v7, got %+v", res)
	}

	g := kg.New(kg.Config{})
	if err := g.LoadGraph(dir, NodeSnapshotName(7), EdgeSnapshotName(7)); err != nil {
		t.Fatal(err)
	}
	if id, _ := g.FindNodeBySynonym("NCBI:562"); id != "Microbe:1" {
		t.Errorf("Expected Microbe:1 preserved, got %q", id)
	}
	if id, _ := g.FindNodeBySynonym("NCBI:1280"); id != "Microbe:2" {
		t.Errorf("Expected Microbe:2, got %q", id)
	}
}

func TestRunnerFirstPassesFromEmpty(t *testing.T) {
	for _, p := range []Pass{
		writeKEGGFixture(t),
		&Records{Source: "curated", Files: []RecordFiles{writeRecordsFixture(t)}},
	} {
		dir := t.TempDir()
		res, err := (&Runner{OutputDir: dir}).Run(context.Background(), p)
		if err != nil {
			t.Fatalf("%s: Run failed: %v", p.Name(), err)
		}
		if res.Version != 1 || res.NodesPath != filepath.Join(dir, NodeSnapshotName(1)) {
			t.Errorf("%s: expected a v1 snapshot, got %+v", p.Name(), res)
		}
		if res.Nodes == 0 || res.Edges == 0 {
			t.Errorf("%s: expected nodes and edges from an empty graph, got %+v", p.Name(), res)
		}

		g := kg.New(kg.Config{})
		if err := g.LoadGraph(dir, NodeSnapshotName(1), EdgeSnapshotName(1)); err != nil {
			t.Fatalf("%s: %v", p.Name(), err)
		}
		if g.CountNodes() != res.Nodes || g.CountEdges() != res.Edges {
			t.Errorf("%s: reloaded %d/%d, wrote %d/%d", p.Name(), g.CountNodes(), g.CountEdges(), res.Nodes, res.Edges)
		}
	}
}

func TestRunnerFailedPassWritesNothing(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	r := &Runner{OutputDir: dir}
	_, err := r.Run(context.Background(), &funcPass{name: "broken", version: 3, run: func(context.Context, *kg.KnowledgeGraph) error {
		return boom
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected pass error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, NodeSnapshotName(3))); !os.IsNotExist(err) {
		t.Errorf("Expected no snapshot after failure, got %v", err)
	}
}

func TestRunnerRequiresBothExistingFiles(t *testing.T) {
	r := &Runner{ExistingNodes: "KG_nodes_v1.tsv", OutputDir: t.TempDir()}
	if _, err := r.Run(context.Background(), &funcPass{name: "x", version: 2, run: addMicrobe("1")}); err == nil {
		t.Fatal("Expected error for missing edge snapshot")
	}
}

func TestRunnerPublishError(t *testing.T) {
	r := &Runner{OutputDir: t.TempDir(), Publisher: &fakePublisher{err: errors.New("denied")}}
	if _, err := r.Run(context.Background(), &funcPass{name: "x", version: 1, run: addMicrobe("1")}); err == nil {
		t.Fatal("Expected publish error")
	}
}
