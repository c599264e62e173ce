package integrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dd0wney/microbekg/pkg/idmap"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// KG2 file names inside the data directory.
const (
	KG2NodesHeader = "nodes_c_header.tsv"
	KG2Nodes       = "nodes_c.tsv"
	KG2EdgesHeader = "edges_c_header.tsv"
	KG2Edges       = "edges_c.tsv"
)

// KG2 column names.
const (
	kg2ColID          = "id:ID"
	kg2ColCategory    = "category"
	kg2ColName        = "name"
	kg2ColDescription = "description"
	kg2ColCuries      = "equivalent_curies:string[]"
	kg2ListSeparator  = "ǂ"
	kg2SemMedDB       = "infores:semmeddb"
)

var kg2Categories = map[string]kg.NodeType{
	"biolink:Disease":           kg.Disease,
	"biolink:PhenotypicFeature": kg.PhenotypicFeature,
}

// KEGG curie prefixes in KG2 and the synonym form used by the KEGG pass.
var keggPrefixes = map[string]string{
	"KEGG.COMPOUND": "KEGG:cpd",
	"KEGG.DRUG":     "KEGG:dr",
	"KEGG.ENZYME":   "KEGG:ec",
	"KEGG.GLYCAN":   "KEGG:gl",
	"KEGG.REACTION": "KEGG:rn",
}

var keggNodeTypes = map[string]kg.NodeType{
	"KEGG:dr":  kg.Drug,
	"KEGG:cpd": kg.Compound,
	"KEGG:ec":  kg.Enzyme,
	"KEGG:gl":  kg.Glycan,
	"KEGG:rn":  kg.Reaction,
}

// reliablePrefixes lists, per node type, the vocabularies whose KG2
// equivalences are trusted enough to become synonyms.
var reliablePrefixes = map[kg.NodeType][]string{
	kg.Disease:           {"MONDO", "OMIM", "LOINC", "RXNORM", "DOID", "ORPHANET", "ICD-9", "ICD-10", "MeSH", "UMLS"},
	kg.PhenotypicFeature: {"HP", "NBO", "SYMP", "PSY", "UMLS"},
	kg.Drug:              {"DRUGBANK", "KEGG.DRUG", "DrugCentral", "VANDF", "RXNORM"},
	kg.Compound:          {"KEGG.COMPOUND", "PathWhiz.Compound", "HMDB", "CHEMBL.COMPOUND", "PubChem", "ChEBI", "RXNORM"},
	kg.Enzyme:            {"KEGG.ENZYME", "PathWhiz.ProteinComplex", "UniProtKB"},
	kg.Glycan:            {"KEGG.GLYCAN"},
	kg.Reaction:          {"KEGG.REACTION", "GO"},
}

// KG2 integrates diseases, phenotypes and KEGG-linked chemistry from an
// RTX-KG2 export, together with the edges among the selected concepts.
type KG2 struct {
	DataDir string
}

func (k *KG2) Name() string { return "kg2" }
func (k *KG2) Version() int { return 3 }

type kg2Node struct {
	id          string
	category    string
	name        string
	description string
	curies      []string
}

type kg2EdgeKey struct {
	subject, predicate, object string
}

func (k *KG2) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	paths := []string{
		filepath.Join(k.DataDir, KG2EdgesHeader),
		filepath.Join(k.DataDir, KG2Edges),
		filepath.Join(k.DataDir, KG2NodesHeader),
		filepath.Join(k.DataDir, KG2Nodes),
	}
	if !tsv.CheckFiles(logger, paths...) {
		return fmt.Errorf("kg2: %w", kg.ErrMissingFile)
	}

	nodes, err := readKG2Nodes(paths[2], paths[3])
	if err != nil {
		return err
	}
	logger.Info("selected KG2 nodes", logging.Count(len(nodes)))

	selected := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		selected[n.id] = true
	}
	edges, order, err := readKG2Edges(paths[0], paths[1], selected)
	if err != nil {
		return err
	}
	logger.Info("selected KG2 edges", logging.Count(len(order)))

	synonymsOf := map[string][]string{}
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		syns, err := k.integrateNode(g, logger, n)
		if err != nil {
			return err
		}
		if len(syns) > 0 {
			synonymsOf[n.id] = syns
		}
	}

	added := 0
	for _, key := range order {
		subj, ok1 := synonymsOf[key.subject]
		obj, ok2 := synonymsOf[key.object]
		if !ok1 || !ok2 {
			continue
		}
		subjIDs := resolveDistinct(g, subj)
		if len(subjIDs) != 1 {
			return fmt.Errorf("kg2: subject %s has %d ids in the graph: %w", key.subject, len(subjIDs), kg.ErrIdentityConflict)
		}
		objIDs := resolveDistinct(g, obj)
		if len(objIDs) != 1 {
			return fmt.Errorf("kg2: object %s has %d ids in the graph: %w", key.object, len(objIDs), kg.ErrIdentityConflict)
		}
		if subjIDs[0] == objIDs[0] {
			continue
		}
		sources := kg.NewStringSet()
		for _, s := range edges[key].Slice() {
			sources.Add(strings.ToUpper(strings.TrimPrefix(s, "infores:")))
		}
		if _, ok := g.AddEdge(&kg.Edge{
			Source:           subjIDs[0],
			Target:           objIDs[0],
			Predicate:        key.predicate,
			KnowledgeSources: sources,
		}); ok {
			added++
		}
	}
	logger.Info("added KG2 edges", logging.Count(added))
	return nil
}

// integrateNode merges one KG2 concept and returns the synonyms it was
// registered under, or nil if it was skipped.
func (k *KG2) integrateNode(g *kg.KnowledgeGraph, logger logging.Logger, n kg2Node) ([]string, error) {
	curies := make([]string, len(n.curies))
	for i, c := range n.curies {
		curies[i] = keggSynonym(c)
	}

	existing := resolveDistinct(g, curies)
	if len(existing) > 1 {
		// The concept spans several nodes; link them rather than merge.
		for i := 0; i < len(existing); i++ {
			for j := i + 1; j < len(existing); j++ {
				addBidirectional(g, existing[i], existing[j],
					PredicateChemicallySimilar, PredicateChemicallySimilar, "KG2")
			}
		}
		return nil, nil
	}

	t, ok := kg2NodeType(n.category, curies)
	if !ok {
		logger.Debug("dropping KG2 node with ambiguous type", logging.String("kg2_id", n.id))
		return nil, nil
	}

	allowed := map[string]bool{}
	for _, p := range reliablePrefixes[t] {
		allowed[p] = true
	}
	var synonyms []string
	for _, c := range n.curies {
		prefix, _, _ := strings.Cut(c, ":")
		if allowed[prefix] {
			synonyms = append(synonyms, keggSynonym(c))
		}
	}
	synonyms = validSynonyms(logger, synonyms)
	if len(synonyms) == 0 {
		return nil, nil
	}

	candidate := &kg.Node{
		Type:        t,
		Names:       kg.NewStringSet(n.name),
		Description: kg.NewAttributes(kg.Attr("RTX-KG2 Description", n.description)),
		Synonyms:    kg.NewStringSet(synonyms...),
	}
	for _, s := range synonyms {
		prefix, _, _ := strings.Cut(s, ":")
		candidate.KnowledgeSources.Add(strings.ToUpper(prefix))
		if l := idmap.ReferenceLink(s); l != "" {
			candidate.Links.Add(l)
		}
	}
	if len(existing) == 1 {
		// Matched through a curie outside the reliable set; anchor on the id.
		candidate.Synonyms.Add(existing[0])
	}

	if _, err := g.AddNode(candidate); err != nil {
		return nil, fmt.Errorf("kg2 node %s: %w", n.id, err)
	}
	return synonyms, nil
}

// kg2NodeType derives the node type from the category and the KEGG curies.
// Zero or several candidate types make the concept ambiguous.
func kg2NodeType(category string, curies []string) (kg.NodeType, bool) {
	types := map[kg.NodeType]bool{}
	if t, ok := kg2Categories[category]; ok {
		types[t] = true
	}
	for _, c := range curies {
		prefix, _, _ := strings.Cut(c, "_")
		if t, ok := keggNodeTypes[prefix]; ok {
			types[t] = true
		}
	}
	if len(types) != 1 {
		return "", false
	}
	for t := range types {
		return t, true
	}
	return "", false
}

// keggSynonym rewrites KEGG.COMPOUND:C00031 to KEGG:cpd_C00031 and applies
// the prefix renames to everything else.
func keggSynonym(curie string) string {
	prefix, value, ok := strings.Cut(curie, ":")
	if !ok {
		return curie
	}
	if kp, ok := keggPrefixes[prefix]; ok {
		return kp + "_" + value
	}
	return idmap.RenamePrefix(curie)
}

func readKG2Nodes(headerPath, dataPath string) ([]kg2Node, error) {
	header, err := tsv.ReadHeader(headerPath)
	if err != nil {
		return nil, err
	}
	r, err := tsv.OpenWithHeader(dataPath, header)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := r.Require(kg2ColID, kg2ColCategory, kg2ColName, kg2ColDescription, kg2ColCuries); err != nil {
		return nil, fmt.Errorf("%s: %w", headerPath, err)
	}

	seen := map[string]bool{}
	var out []kg2Node
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", dataPath, r.Line()+1, err)
		}
		n := kg2Node{
			id:          r.Field(row, kg2ColID),
			category:    r.Field(row, kg2ColCategory),
			name:        r.Field(row, kg2ColName),
			description: r.Field(row, kg2ColDescription),
		}
		if seen[n.id] {
			continue
		}
		raw := splitNonEmpty(r.Field(row, kg2ColCuries), kg2ListSeparator)
		if !selectKG2Node(n.category, raw) {
			continue
		}
		seen[n.id] = true
		for _, c := range raw {
			n.curies = append(n.curies, idmap.RenamePrefix(c))
		}
		out = append(out, n)
	}
}

func selectKG2Node(category string, curies []string) bool {
	if _, ok := kg2Categories[category]; ok {
		return true
	}
	for _, c := range curies {
		prefix, _, _ := strings.Cut(c, ":")
		if _, ok := keggPrefixes[prefix]; ok {
			return true
		}
	}
	return false
}

// readKG2Edges keeps edges whose endpoints are both selected, merges
// repeats of the same triple and drops triples supported by SemMedDB alone.
func readKG2Edges(headerPath, dataPath string, selected map[string]bool) (map[kg2EdgeKey]*kg.StringSet, []kg2EdgeKey, error) {
	header, err := tsv.ReadHeader(headerPath)
	if err != nil {
		return nil, nil, err
	}
	if len(header) < 4 {
		return nil, nil, fmt.Errorf("%s: expected subject, object, predicate and knowledge source columns", headerPath)
	}
	r, err := tsv.OpenWithHeader(dataPath, header)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	edges := map[kg2EdgeKey]*kg.StringSet{}
	var order []kg2EdgeKey
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", dataPath, r.Line()+1, err)
		}
		if len(row) < 4 || !selected[row[0]] || !selected[row[1]] {
			continue
		}
		key := kg2EdgeKey{subject: row[0], object: row[1], predicate: row[2]}
		set, ok := edges[key]
		if !ok {
			s := kg.NewStringSet()
			set = &s
			edges[key] = set
			order = append(order, key)
		}
		for _, ks := range splitNonEmpty(row[3], "; ") {
			set.Add(ks)
		}
	}

	kept := order[:0]
	for _, key := range order {
		s := edges[key]
		if s.Len() == 1 && s.Contains(kg2SemMedDB) {
			delete(edges, key)
			continue
		}
		kept = append(kept, key)
	}
	return edges, kept, nil
}
