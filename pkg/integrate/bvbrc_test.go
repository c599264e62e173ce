package integrate

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/dd0wney/microbekg/pkg/idmap"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
)

func TestCleanDiseaseName(t *testing.T) {
	tests := map[string]string{
		"  sepsis ":            "sepsis",
		"bacterimia":           "Bacteremia",
		"healthy":              "",
		"":                     "",
		"Necrotizing faciitis": "Necrotizing fasciitis",
	}
	for in, want := range tests {
		if got := CleanDiseaseName(in); got != want {
			t.Errorf("CleanDiseaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitDiseases(t *testing.T) {
	got := SplitDiseases("sepsis; meniigitis,healthy/Pneumonia")
	want := []string{"sepsis", "meningitis", "Pneumonia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := SplitDiseases("other"); len(got) != 0 {
		t.Errorf("Expected nothing, got %v", got)
	}
}

func TestLowestGTDBTaxon(t *testing.T) {
	tests := map[string]string{
		"d__Bacteria;p__Pseudomonadota;g__Escherichia;s__Escherichia coli": "Escherichia coli",
		"d__Bacteria;p__Pseudomonadota;g__Escherichia;s__":                 "Escherichia",
		"Unclassified Bacteria":                                            "",
	}
	for in, want := range tests {
		if got := lowestGTDBTaxon(in); got != want {
			t.Errorf("lowestGTDBTaxon(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMeetsThreshold(t *testing.T) {
	if !meetsThreshold("95.0", 95) {
		t.Error("Expected equal value to pass")
	}
	for _, v := range []string{"94.9", "N/A", "abc"} {
		if meetsThreshold(v, 95) {
			t.Errorf("meetsThreshold(%q) should fail", v)
		}
	}
}

func writeBVBRCFixture(t *testing.T) *BVBRC {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "bvbrc")
	writeTSV(t, data, BVBRCRelations,
		row("genome_id", "assembly_accession", "disease"),
		row("100.1", "", "sepsis; bacterimia"),
		row("200.1", "GCA_123", "Sepsis"),
		row("300.1", "", "sepsis"),
		row("400.1", "", "Influenza"),
		row("500.1", "", ""),
		row("600.1", "", "sepsis"),
	)
	writeTSV(t, data, BVBRCGenomeMetadata,
		row("genome_id", "genome_name", "organism_name", "taxon_id"),
		row("100.1", "Escherichia coli K-12", "x", "83333"),
		row("200.1", "Escherichia sp. 1", "x", "561"),
		row("300.1", "Unknown bug", "x", "2"),
		row("400.1", "Influenza A virus", "x", "11320"),
		row("600.1", "Candida", "x", "5476"),
	)
	return &BVBRC{
		DataDir: data,
		GTDBAssignment: writeTSV(t, dir, "gtdbtk.bac120.summary.tsv",
			row("user_genome", "classification", "fastani_reference", "fastani_reference_radius",
				"fastani_ani", "fastani_af", "classification_method", "msa_percent"),
			row("100.1", "d__Bacteria;g__Escherichia;s__Escherichia coli", "GCF_000005845.2", "95.0", "99.1", "0.95", "ANI", "98.0"),
			row("200.1", "d__Bacteria;p__P;g__Escherichia;s__", "GCF_999", "95.0", "80.0", "0.2", "topology", "90.0"),
			row("300.1", "Unclassified Bacteria", "N/A", "N/A", "N/A", "N/A", "topology", "50.0"),
		),
		Lineage: writeTSV(t, dir, "lineage.tsv",
			row("TaxID", "Rank", "Lineage"),
			row("83333", "strain", "cellular organisms;Bacteria;Escherichia coli K-12"),
			row("561", "genus", "cellular organisms;Bacteria;Escherichia"),
			row("2", "superkingdom", "cellular organisms;Bacteria"),
			row("11320", "species", "Viruses;Riboviria;Influenza A virus"),
			row("5476", "species", "cellular organisms;Eukaryota;Candida"),
		),
		ANIThreshold: 95,
		AFThreshold:  0.5,
		Workers:      2,
	}
}

func TestReadAssignmentsDefaultThresholds(t *testing.T) {
	b := writeBVBRCFixture(t)
	b.ANIThreshold, b.AFThreshold = 0, 0

	got, err := b.readAssignments()
	if err != nil {
		t.Fatalf("readAssignments failed: %v", err)
	}
	want := map[string]string{
		"100.1": "GTDB:GCF_000005845.2",
		"200.1": "GTDB:GCF_999",
		"300.1": "BVBRC:gn_300.1",
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d assignments, got %d", len(want), len(got))
	}
	for genome, target := range want {
		if got[genome].target != target {
			t.Errorf("%s: expected target %s, got %s", genome, target, got[genome].target)
		}
	}
	if got["300.1"].hasANI {
		t.Error("Expected N/A ANI to be recorded as missing")
	}
}

func TestReadAssignmentsThresholdsKeepOwnSynonym(t *testing.T) {
	b := writeBVBRCFixture(t)

	got, err := b.readAssignments()
	if err != nil {
		t.Fatalf("readAssignments failed: %v", err)
	}
	if got["100.1"].target != "GTDB:GCF_000005845.2" {
		t.Errorf("Expected 100.1 to reach its reference, got %s", got["100.1"].target)
	}
	if got["200.1"].target != "BVBRC:gn_200.1" {
		t.Errorf("Expected 200.1 below threshold to keep its own synonym, got %s", got["200.1"].target)
	}
	if v := got["200.1"].info[1]; v.Key != "ANI" || v.Value != "80.0" {
		t.Errorf("Expected ANI info kept, got %+v", v)
	}
}

func TestBVBRCPass(t *testing.T) {
	g := kg.New(kg.Config{})
	genome := mustAdd(t, g, kg.Microbe, "E. coli", "GTDB:GCF_000005845.2")
	mustAdd(t, g, kg.Microbe, "Escherichia coli", "GTDB:Escherichia coli")
	virus := mustAdd(t, g, kg.Microbe, "Influenza A virus", "NCBI:Influenza A virus")
	genus := mustAdd(t, g, kg.Microbe, "Escherichia", "GTDB:Escherichia")
	sepsis := mustAdd(t, g, kg.Disease, "sepsis", "UMLS:C0243026")
	flu := mustAdd(t, g, kg.Disease, "influenza", "UMLS:C0021400")

	umls := map[string][]string{
		"sepsis":     {"UMLS:C0243026"},
		"Sepsis":     {"UMLS:C0243026"},
		"Bacteremia": {"UMLS:C0004610"},
		"Influenza":  {"UMLS:C0021400"},
	}
	var calls atomic.Int32
	b := writeBVBRCFixture(t)
	b.Diseases = idmap.OracleFunc(func(_ context.Context, name string) ([]string, error) {
		calls.Add(1)
		return umls[name], nil
	})

	if err := b.Run(context.Background(), g, logging.NewNopLogger()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("Expected 4 disease lookups, got %d", calls.Load())
	}

	if got := mustResolve(t, g, "BVBRC:gn_100.1"); got != genome {
		t.Errorf("Expected 100.1 merged into %s, got %s", genome, got)
	}
	n, _ := g.GetNodeByID(genome)
	if !n.IsPathogen {
		t.Error("Expected merged genome to be a pathogen")
	}
	if v, _ := n.Description.Get("taxid"); v != "83333" {
		t.Errorf("Expected taxid 83333, got %q", v)
	}
	if v, _ := n.Description.Get("ANI"); v != "99.1" {
		t.Errorf("Expected ANI 99.1, got %q", v)
	}
	if !n.Links.Contains("https://www.bv-brc.org/view/Genome/100.1") || !n.KnowledgeSources.Contains("BVBRC") {
		t.Errorf("Expected BV-BRC provenance, got %v %v", n.Links.Slice(), n.KnowledgeSources.Slice())
	}

	created := mustResolve(t, g, "BVBRC:gn_200.1")
	if created != "Microbe:5" {
		t.Errorf("Expected new node Microbe:5, got %s", created)
	}
	if got := mustResolve(t, g, "GTDB:GCA_123"); got != created {
		t.Errorf("Expected assembly synonym on %s, got %s", created, got)
	}
	if !hasEdge(g, genus, PredicateHasPart, created) || !hasEdge(g, created, PredicatePartOf, genus) {
		t.Error("Expected new genome under its GTDB genus")
	}

	for _, s := range []string{"BVBRC:gn_300.1", "BVBRC:gn_500.1", "BVBRC:gn_600.1"} {
		if _, ok := g.FindNodeBySynonym(s); ok {
			t.Errorf("%s should not be integrated", s)
		}
	}
	if got := mustResolve(t, g, "BVBRC:gn_400.1"); got != virus {
		t.Errorf("Expected virus genome merged into %s, got %s", virus, got)
	}

	for _, pair := range [][2]string{{genome, sepsis}, {created, sepsis}, {virus, flu}} {
		if !hasEdge(g, pair[0], PredicateAssociatedWith, pair[1]) || !hasEdge(g, pair[1], PredicateAssociatedWith, pair[0]) {
			t.Errorf("Expected associated_with between %s and %s", pair[0], pair[1])
		}
	}
	if g.CountEdges() != 8 {
		t.Errorf("Expected 8 edges, got %d", g.CountEdges())
	}
}

func TestBVBRCOracleError(t *testing.T) {
	b := writeBVBRCFixture(t)
	boom := errors.New("umls down")
	b.Diseases = idmap.OracleFunc(func(context.Context, string) ([]string, error) { return nil, boom })

	err := b.Run(context.Background(), kg.New(kg.Config{}), logging.NewNopLogger())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected oracle error, got %v", err)
	}
}
