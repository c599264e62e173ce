package idmap

import (
	"strings"
)

var prefixRenames = map[string]string{
	"ICD9":             "ICD-9",
	"ICD10":            "ICD-10",
	"ICD11":            "ICD-11",
	"MESH":             "MeSH",
	"PUBCHEM.COMPOUND": "PubChem",
	"CHEBI":            "ChEBI",
}

var diseasePrefixes = map[string]bool{
	"MONDO": true, "OMIM": true, "LOINC": true, "RXNORM": true, "DOID": true,
	"ORPHANET": true, "ICD-9": true, "ICD-10": true, "MeSH": true, "UMLS": true,
}

// SplitCurie splits "PREFIX:VALUE" at the first colon.
func SplitCurie(curie string) (prefix, value string, ok bool) {
	prefix, value, ok = strings.Cut(curie, ":")
	if !ok || prefix == "" || value == "" {
		return "", "", false
	}
	return prefix, value, true
}

// RenamePrefix rewrites a curie onto the prefix spelling used in the graph
// (ICD10 becomes ICD-10, MESH becomes MeSH, ...). Other curies are returned
// unchanged.
func RenamePrefix(curie string) string {
	prefix, value, ok := strings.Cut(curie, ":")
	if !ok {
		return curie
	}
	if renamed, ok := prefixRenames[prefix]; ok {
		return renamed + ":" + value
	}
	return curie
}

// NormalizePrefix renames a disease curie with RenamePrefix and keeps it
// only if the prefix is one of the accepted disease vocabularies.
func NormalizePrefix(curie string) (string, bool) {
	prefix, value, ok := SplitCurie(RenamePrefix(curie))
	if !ok || !diseasePrefixes[prefix] {
		return "", false
	}
	return prefix + ":" + value, true
}

// NormalizeAll applies NormalizePrefix to every curie, dropping rejects and
// duplicates while keeping order.
func NormalizeAll(curies []string) []string {
	seen := make(map[string]bool, len(curies))
	var out []string
	for _, c := range curies {
		n, ok := NormalizePrefix(c)
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ReferenceLink returns a user-facing URL for curie, or "" when the
// vocabulary has no stable landing page.
func ReferenceLink(curie string) string {
	prefix, value, ok := SplitCurie(curie)
	if !ok {
		return ""
	}
	switch prefix {
	case "MONDO":
		return "http://purl.obolibrary.org/obo/MONDO_" + value
	case "OMIM":
		return "https://www.omim.org/entry/" + value
	case "RXNORM":
		return "https://bioportal.bioontology.org/ontologies/RXNORM?p=classes&conceptid=" + value
	case "DOID":
		return "https://www.ebi.ac.uk/ols/ontologies/doid/terms?obo_id=" + curie + "/"
	case "ORPHANET":
		return "https://identifiers.org/" + curie
	case "MeSH":
		return "https://id.nlm.nih.gov/mesh/" + value + ".html"
	case "HP":
		return "https://hpo.jax.org/app/browse/term/" + curie
	case "UMLS":
		return "http://linkedlifedata.com/resource/umls/id/" + value
	case "DRUGBANK":
		return "https://go.drugbank.com/drugs/" + value
	case "KEGG":
		// KEGG synonyms carry a sub-prefix: KEGG:cpd_C00001.
		if _, entry, ok := strings.Cut(value, "_"); ok && entry != "" {
			return "https://www.kegg.jp/entry/" + entry
		}
		return ""
	case "DrugCentral":
		return "https://drugcentral.org/drugcard/" + value
	case "VANDF":
		return "https://bioportal.bioontology.org/ontologies/VANDF?p=classes&conceptid=" + value
	case "HMDB":
		return "https://hmdb.ca/metabolites/" + value
	case "CHEMBL.COMPOUND":
		return "https://www.ebi.ac.uk/chembl/compound_report_card/" + value + "/"
	case "PubChem":
		return "https://pubchem.ncbi.nlm.nih.gov/compound/" + value
	case "ChEBI":
		return "https://www.ebi.ac.uk/chebi/searchId.do?chebiId=" + curie
	case "UniProtKB":
		return "https://www.uniprot.org/uniprotkb/" + value + "/entry"
	case "GO":
		return "https://www.salivaryproteome.org/public/index.php/Special:Ontology_Term/" + curie
	case "NCBI", "NCBITaxon":
		return "https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?id=" + value
	}
	return ""
}

// ReferenceLinks maps curies to their non-empty links.
func ReferenceLinks(curies []string) []string {
	var out []string
	for _, c := range curies {
		if l := ReferenceLink(c); l != "" {
			out = append(out, l)
		}
	}
	return out
}
