package integrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/microbekg/pkg/idmap"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// TestPipeline runs KEGG, hierarchy, KG2, BV-BRC and MicroPhenoDB in
// sequence. KEGG starts from an empty graph; every later pass starts from
// the snapshot the previous one wrote.
func TestPipeline(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	reg := metrics.NewRegistry()

	diseases := idmap.OracleFunc(func(_ context.Context, name string) ([]string, error) {
		switch name {
		case "sepsis", "Sepsis":
			return []string{"MONDO:0005047"}, nil
		case "Influenza":
			return []string{"KEGG:ds_H00111"}, nil
		}
		return nil, nil
	})

	passes := []Pass{
		writeKEGGFixture(t),
		writeHierarchyFixture(t),
		&KG2{DataDir: writeKG2Fixture(t)},
		func() Pass {
			b := writeBVBRCFixture(t)
			b.Diseases = diseases
			return b
		}(),
		func() Pass {
			p := writeMicroPhenoDBFixture(t)
			p.Diseases = diseases
			return p
		}(),
	}

	var prev *Result
	for i, p := range passes {
		r := &Runner{OutputDir: out, Metrics: reg}
		if prev != nil {
			r.ExistingNodes, r.ExistingEdges = prev.NodesPath, prev.EdgesPath
		}
		res, err := r.Run(ctx, p)
		require.NoError(t, err, "pass %s", p.Name())
		assert.Equal(t, i+1, res.Version)
		assert.Equal(t, p.Version(), res.Version, "pass %s", p.Name())
		if prev != nil {
			assert.GreaterOrEqual(t, res.Nodes, prev.Nodes, "pass %s lost nodes", p.Name())
			assert.GreaterOrEqual(t, res.Edges, prev.Edges, "pass %s lost edges", p.Name())
		}
		prev = res
	}

	// Earlier snapshots stay on disk untouched.
	for v := 1; v <= 5; v++ {
		_, err := os.Stat(filepath.Join(out, NodeSnapshotName(v)))
		assert.NoError(t, err)
	}

	g := kg.New(kg.Config{})
	require.NoError(t, g.LoadGraph(out, NodeSnapshotName(5), EdgeSnapshotName(5)))

	// KEGG, GTDB and BV-BRC all land on one genome node.
	genome, ok := g.FindNodeBySynonym("GTDB:GCF_000005845.2")
	require.True(t, ok)
	for _, s := range []string{"KEGG:gn_T00007", "GTDB:GCA_000005845.2", "BVBRC:gn_100.1"} {
		id, ok := g.FindNodeBySynonym(s)
		require.True(t, ok, s)
		assert.Equal(t, genome, id, s)
	}
	n, ok := g.GetNodeByID(genome)
	require.True(t, ok)
	assert.True(t, n.IsPathogen)
	for _, ks := range []string{"KEGG", "GTDB", "BVBRC"} {
		assert.True(t, n.KnowledgeSources.Contains(ks), ks)
	}

	pathway, ok := g.FindNodeBySynonym("KEGG:path_map00010")
	require.True(t, ok)
	assert.True(t, hasEdge(g, genome, PredicateAssociatedWith, pathway), "KEGG link survives later passes")

	sepsis, ok := g.FindNodeBySynonym("MONDO:0005047")
	require.True(t, ok)
	assert.True(t, hasEdge(g, genome, PredicateAssociatedWith, sepsis))

	species, ok := g.FindNodeBySynonym("GTDB:Escherichia coli")
	require.True(t, ok)
	assert.True(t, hasEdge(g, species, PredicateAssociatedWith, sepsis), "MicroPhenoDB links the species")
	sp, _ := g.GetNodeByID(species)
	assert.True(t, sp.IsPathogen)
	assert.True(t, sp.KnowledgeSources.Contains("MicroPhenoDB"))

	virus, ok := g.FindNodeBySynonym("NCBI:Influenza A virus")
	require.True(t, ok)
	kv, ok := g.FindNodeBySynonym("KEGG:gn_T40001")
	require.True(t, ok)
	assert.Equal(t, virus, kv)
	influenza, ok := g.FindNodeBySynonym("KEGG:ds_H00111")
	require.True(t, ok)
	assert.True(t, hasEdge(g, virus, PredicateAssociatedWith, influenza))
	assert.True(t, hasEdge(g, influenza, PredicateAssociatedWith, virus))

	phenotype, ok := g.FindNodeBySynonym("HP:0001945")
	require.True(t, ok)
	assert.Len(t, g.FindAllInEdges(phenotype), 1)
}
