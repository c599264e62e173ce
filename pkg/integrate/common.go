package integrate

import (
	"strings"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/validation"
)

const (
	PredicateHasPart           = "biolink:has_part"
	PredicatePartOf            = "biolink:part_of"
	PredicateAssociatedWith    = "biolink:associated_with"
	PredicateChemicallySimilar = "biolink:chemically_similar_to"
)

func ncbiTaxonLink(taxid string) string {
	return "https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?mode=Info&id=" + taxid
}

func ncbiTaxonNameLink(name string) string {
	return "https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?name=" + name
}

func gtdbGenomeLinks(accession string) []string {
	return []string{
		"https://gtdb.ecogenomic.org/genome?gid=" + accession,
		"https://www.ncbi.nlm.nih.gov/assembly/" + accession,
	}
}

func bvbrcGenomeLink(genomeID string) string {
	return "https://www.bv-brc.org/view/Genome/" + genomeID
}

// addBidirectional adds predicate a from src to dst and predicate b back.
func addBidirectional(g *kg.KnowledgeGraph, src, dst, a, b, source string) int {
	added := 0
	if _, ok := g.AddEdge(&kg.Edge{Source: src, Target: dst, Predicate: a, KnowledgeSources: kg.NewStringSet(source)}); ok {
		added++
	}
	if _, ok := g.AddEdge(&kg.Edge{Source: dst, Target: src, Predicate: b, KnowledgeSources: kg.NewStringSet(source)}); ok {
		added++
	}
	return added
}

// validSynonyms keeps well-formed identifiers and warns about the rest.
func validSynonyms(logger logging.Logger, synonyms []string) []string {
	out := synonyms[:0:0]
	for _, s := range synonyms {
		if err := validation.ValidSynonym(s); err != nil {
			logger.Warn("skipping malformed identifier", logging.Synonym(s), logging.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out
}

// resolveDistinct maps synonyms to distinct node ids, in first-seen order.
func resolveDistinct(g *kg.KnowledgeGraph, synonyms []string) []string {
	seen := map[string]bool{}
	var ids []string
	for _, s := range synonyms {
		id, ok := g.FindNodeBySynonym(s)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// splitNonEmpty splits s on sep, trims each part and drops empty ones.
func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
