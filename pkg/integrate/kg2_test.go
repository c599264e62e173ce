package integrate

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
)

func writeKG2Fixture(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "kg2")
	writeTSV(t, dir, KG2NodesHeader, row("id:ID", "name", "category", "description", "iri", "equivalent_curies:string[]"))
	writeTSV(t, dir, KG2Nodes,
		row("MONDO:0005047", "sepsis", "biolink:Disease", "systemic infection", "iri", "MONDO:0005047ǂMESH:D018805ǂSNOMEDCT:91302008"),
		row("CHEBI:17234", "glucose", "biolink:SmallMolecule", "", "iri", "KEGG.COMPOUND:C00031ǂCHEBI:17234ǂPUBCHEM.COMPOUND:5793"),
		row("HP:0001945", "Fever", "biolink:PhenotypicFeature", "", "iri", "HP:0001945ǂUMLS:C0015967"),
		row("X:1", "weird", "biolink:Disease", "", "iri", "KEGG.DRUG:D00001"),
		row("NCBITaxon:562", "E. coli", "biolink:OrganismTaxon", "", "iri", "NCBITaxon:562"),
		row("CHEBI:1", "mixture", "biolink:SmallMolecule", "", "iri", "KEGG.COMPOUND:C1ǂKEGG.DRUG:D1"),
		row("MONDO:0005047", "duplicate", "biolink:Disease", "", "iri", "MONDO:0005047"),
	)
	writeTSV(t, dir, KG2EdgesHeader, row("subject", "object", "predicate", "primary_knowledge_source", "publications:string[]"))
	writeTSV(t, dir, KG2Edges,
		row("MONDO:0005047", "HP:0001945", "biolink:has_phenotype", "infores:semmeddb", ""),
		row("MONDO:0005047", "HP:0001945", "biolink:has_phenotype", "infores:mondo", "PMID:1"),
		row("HP:0001945", "MONDO:0005047", "biolink:related_to", "infores:semmeddb", ""),
		row("MONDO:0005047", "NCBITaxon:562", "biolink:related_to", "infores:mondo", ""),
		row("CHEBI:17234", "CHEBI:17234", "biolink:related_to", "infores:chebi", ""),
	)
	return dir
}

func TestKG2Pass(t *testing.T) {
	g := kg.New(kg.Config{})
	glucose := mustAdd(t, g, kg.Compound, "D-Glucose", "KEGG:cpd_C00031")
	c1 := mustAdd(t, g, kg.Compound, "c1", "KEGG:cpd_C1")
	d1 := mustAdd(t, g, kg.Drug, "d1", "KEGG:dr_D1")

	k := &KG2{DataDir: writeKG2Fixture(t)}
	if err := k.Run(context.Background(), g, logging.NewNopLogger()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sepsis := mustResolve(t, g, "MeSH:D018805")
	if sepsis != "Disease:1" {
		t.Errorf("Expected Disease:1, got %s", sepsis)
	}
	if _, ok := g.FindNodeBySynonym("SNOMEDCT:91302008"); ok {
		t.Error("Unreliable prefix should not become a synonym")
	}
	n, _ := g.GetNodeByID(sepsis)
	if !reflect.DeepEqual(n.KnowledgeSources.Slice(), []string{"MONDO", "MESH"}) {
		t.Errorf("Expected [MONDO MESH], got %v", n.KnowledgeSources.Slice())
	}
	if !n.Links.Contains("http://purl.obolibrary.org/obo/MONDO_0005047") {
		t.Errorf("Expected MONDO link, got %v", n.Links.Slice())
	}
	if d, _ := n.Description.Get("RTX-KG2 Description"); d != "systemic infection" {
		t.Errorf("Expected KG2 description, got %q", d)
	}
	if n.Names.Contains("duplicate") {
		t.Error("Repeated KG2 ids should be ignored")
	}

	if got := mustResolve(t, g, "PubChem:5793"); got != glucose {
		t.Errorf("Expected glucose merged into %s, got %s", glucose, got)
	}
	gl, _ := g.GetNodeByID(glucose)
	if !gl.Names.Contains("glucose") || !gl.Names.Contains("D-Glucose") {
		t.Errorf("Expected both names, got %v", gl.Names.Slice())
	}

	for _, s := range []string{"KEGG:dr_D00001", "NCBITaxon:562"} {
		if _, ok := g.FindNodeBySynonym(s); ok {
			t.Errorf("%s should have been skipped", s)
		}
	}

	fever := mustResolve(t, g, "HP:0001945")
	e, ok := g.GetEdgeByID(kg.EdgeID(sepsis, "biolink:has_phenotype", fever))
	if !ok {
		t.Fatal("Expected has_phenotype edge")
	}
	if !reflect.DeepEqual(e.KnowledgeSources.Slice(), []string{"SEMMEDDB", "MONDO"}) {
		t.Errorf("Expected [SEMMEDDB MONDO], got %v", e.KnowledgeSources.Slice())
	}
	if hasEdge(g, fever, "biolink:related_to", sepsis) {
		t.Error("SemMedDB-only edge should be dropped")
	}

	if !hasEdge(g, c1, PredicateChemicallySimilar, d1) || !hasEdge(g, d1, PredicateChemicallySimilar, c1) {
		t.Error("Expected chemically_similar_to both ways between conflicting nodes")
	}
	if g.CountEdges() != 3 {
		t.Errorf("Expected 3 edges, got %d", g.CountEdges())
	}
}

func TestKG2NodeType(t *testing.T) {
	tests := []struct {
		category string
		curies   []string
		want     kg.NodeType
		ok       bool
	}{
		{"biolink:Disease", []string{"MONDO:1"}, kg.Disease, true},
		{"biolink:SmallMolecule", []string{"KEGG:cpd_C1"}, kg.Compound, true},
		{"biolink:SmallMolecule", []string{"KEGG:cpd_C1", "KEGG:cpd_C2"}, kg.Compound, true},
		{"biolink:Disease", []string{"KEGG:dr_D1"}, "", false},
		{"biolink:SmallMolecule", []string{"CHEBI:1"}, "", false},
	}
	for _, tt := range tests {
		got, ok := kg2NodeType(tt.category, tt.curies)
		if got != tt.want || ok != tt.ok {
			t.Errorf("kg2NodeType(%q, %v) = %q, %v; want %q, %v", tt.category, tt.curies, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKeggSynonym(t *testing.T) {
	tests := map[string]string{
		"KEGG.COMPOUND:C00031":  "KEGG:cpd_C00031",
		"KEGG.REACTION:R00001":  "KEGG:rn_R00001",
		"PUBCHEM.COMPOUND:5793": "PubChem:5793",
		"HP:1":                  "HP:1",
	}
	for in, want := range tests {
		if got := keggSynonym(in); got != want {
			t.Errorf("keggSynonym(%q) = %q, want %q", in, got, want)
		}
	}
}
