package validation

import (
	"strings"
	"testing"
)

func TestValidSynonym(t *testing.T) {
	tests := []struct {
		synonym string
		wantErr bool
	}{
		{"NCBI:562", false},
		{"GTDB:GCF_000005845.2", false},
		{"KEGG:cpd_C00001", false},
		{"ICD-10:A41.9", false},
		{"PubChem:2244", false},
		{"Microbe:12", false},
		{"", true},
		{"no-prefix", true},
		{":562", true},
		{"NCBI:", true},
		{"GTDB:Escherichia coli", false},
		{"NCBI: 562", true},
		{"NCBI:562 ", true},
		{"1NCBI:562", true},
		{"NCBI:\t562", true},
		{"NCBI:" + strings.Repeat("9", MaxSynonymLength), true},
	}
	for _, tt := range tests {
		err := ValidSynonym(tt.synonym)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidSynonym(%q) error = %v, wantErr %v", tt.synonym, err, tt.wantErr)
		}
	}
}

func TestValidPredicate(t *testing.T) {
	for _, ok := range []string{"biolink:has_part", "biolink:associated_with", "biolink:chemically_similar_to"} {
		if err := ValidPredicate(ok); err != nil {
			t.Errorf("ValidPredicate(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "has_part", "biolink:", "biolink:HasPart", "biolink:has part"} {
		if ValidPredicate(bad) == nil {
			t.Errorf("ValidPredicate(%q) should fail", bad)
		}
	}
}

type edgeRecord struct {
	Source    string   `validate:"required,synonym"`
	Target    string   `validate:"required,synonym"`
	Predicate string   `validate:"required,predicate"`
	Sources   []string `validate:"min=1,dive,required"`
}

func TestStruct(t *testing.T) {
	valid := edgeRecord{Source: "NCBI:562", Target: "MONDO:0005047", Predicate: "biolink:associated_with", Sources: []string{"BVBRC"}}
	if err := Struct(&valid); err != nil {
		t.Fatalf("Expected valid record, got %v", err)
	}

	invalid := edgeRecord{Source: "562", Predicate: "related", Sources: nil}
	err := Struct(&invalid)
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"edgeRecord.Source", "edgeRecord.Target: field is required", "edgeRecord.Predicate", "edgeRecord.Sources: must be at least 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}

	if Struct(nil) == nil {
		t.Error("Expected error for nil")
	}
}
