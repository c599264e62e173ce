package integrate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dd0wney/microbekg/pkg/idmap"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// MicroPhenoDB file names inside the data directory.
const (
	MicroPhenoDBCore    = "core_table.txt"
	MicroPhenoDBDisease = "EFO.txt"
	MicroPhenoDBSpecies = "NCIT.txt"
)

// Disease column values in the core table that are not diseases.
var ignoredPhenoDiseases = map[string]bool{
	"Disease": true, "Disease-free": true, "Null": true, "Not foundthogenic": true,
}

var phenoDiseaseFixes = map[string]string{
	"Pelvic inflamm atory disease": "Pelvic inflammatory disease",
	"Pelvic in铿俛mmatory disease":   "Pelvic inflammatory disease",
}

const phenoDescriptionKey = "MicroPhenoDB Description"

// MicroPhenoDB links pathogenic microbes already in the graph to the
// diseases MicroPhenoDB associates them with.
type MicroPhenoDB struct {
	DataDir string
	// Lineage is a taxonkit lineage table (TaxID, Rank, Lineage) covering
	// the taxa Taxa returns.
	Lineage string
	// XRefs maps an EFO curie to its cross-references.
	XRefs idmap.Oracle
	// Diseases resolves a disease name to synonyms when none of the EFO
	// cross-references is in the graph. Optional.
	Diseases idmap.Oracle
	// Taxa maps an NCIt curie or a microbe name to NCBITaxon curies.
	Taxa    idmap.Oracle
	Workers int
}

func (p *MicroPhenoDB) Name() string { return "microphenodb" }
func (p *MicroPhenoDB) Version() int { return 5 }

type phenoAssociation struct {
	microbe           string
	disease           string
	efo               string
	diseaseAnnotation string
	ncit              string
	speciesAnnotation string
}

type phenoAnnotation struct{ id, annotation string }

func (p *MicroPhenoDB) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	corePath := filepath.Join(p.DataDir, MicroPhenoDBCore)
	efoPath := filepath.Join(p.DataDir, MicroPhenoDBDisease)
	ncitPath := filepath.Join(p.DataDir, MicroPhenoDBSpecies)
	if !tsv.CheckFiles(logger, corePath, efoPath, ncitPath, p.Lineage) {
		return fmt.Errorf("microphenodb: %w", kg.ErrMissingFile)
	}
	if p.XRefs == nil || p.Taxa == nil {
		return fmt.Errorf("microphenodb: cross-reference and taxon oracles are required")
	}

	assocs, err := readPhenoAssociations(corePath, efoPath, ncitPath)
	if err != nil {
		return err
	}
	logger.Info("read MicroPhenoDB associations", logging.Count(len(assocs)))

	xrefs, taxa, err := p.resolve(ctx, assocs)
	if err != nil {
		return err
	}
	lineages := map[string]string{}
	if err := eachRow(p.Lineage, []string{"TaxID", "Lineage"}, func(r *tsv.Reader, row []string) {
		lineages[r.Field(row, "TaxID")] = r.Field(row, "Lineage")
	}); err != nil {
		return err
	}

	byName := map[string][]string{}
	edges := 0
	for _, a := range assocs {
		if err := ctx.Err(); err != nil {
			return err
		}
		diseaseIDs, err := p.attachDisease(ctx, g, logger, a, xrefs[a.efo], byName)
		if err != nil {
			return err
		}
		if len(diseaseIDs) == 0 {
			continue
		}
		microbeID, err := p.attachMicrobe(g, logger, a, taxa[a.microbe], lineages)
		if err != nil {
			return err
		}
		if microbeID == "" {
			continue
		}
		for _, d := range diseaseIDs {
			edges += addBidirectional(g, microbeID, d, PredicateAssociatedWith, PredicateAssociatedWith, "MicroPhenoDB")
		}
	}
	logger.Info("integrated MicroPhenoDB associations", logging.Int("edges", edges))
	return nil
}

// readPhenoAssociations joins the core table with the EFO and NCIt tables
// and drops rows whose disease is not a disease or has no EFO id.
func readPhenoAssociations(corePath, efoPath, ncitPath string) ([]phenoAssociation, error) {
	diseases := map[string]phenoAnnotation{}
	if err := eachRowWith(tsv.OpenLatin1, efoPath, []string{"Scientific_disease_name", "EFO_id", "Disease_annotation"}, func(r *tsv.Reader, row []string) {
		diseases[r.Field(row, "Scientific_disease_name")] = phenoAnnotation{r.Field(row, "EFO_id"), r.Field(row, "Disease_annotation")}
	}); err != nil {
		return nil, err
	}

	species := map[string]phenoAnnotation{}
	if err := eachRow(ncitPath, []string{"Scientific_species_name", "NCIT_id", "Species_annotation"}, func(r *tsv.Reader, row []string) {
		species[r.Field(row, "Scientific_species_name")] = phenoAnnotation{r.Field(row, "NCIT_id"), r.Field(row, "Species_annotation")}
	}); err != nil {
		return nil, err
	}

	var out []phenoAssociation
	err := eachRow(corePath, []string{"Microbe", "Disease"}, func(r *tsv.Reader, row []string) {
		raw := r.Field(row, "Disease")
		if ignoredPhenoDiseases[raw] {
			return
		}
		d, ok := diseases[raw]
		if !ok || d.id == "" {
			return
		}
		a := phenoAssociation{
			microbe:           strings.TrimSpace(r.Field(row, "Microbe")),
			disease:           raw,
			efo:               strings.Replace(d.id, "_", ":", 1),
			diseaseAnnotation: d.annotation,
		}
		if fixed, ok := phenoDiseaseFixes[raw]; ok {
			a.disease = fixed
		}
		if s, ok := species[r.Field(row, "Microbe")]; ok {
			if s.id != "" {
				a.ncit = strings.Replace(s.id, "_", ":", 1)
			}
			a.speciesAnnotation = s.annotation
		}
		if a.microbe == "" {
			return
		}
		out = append(out, a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolve batches the EFO cross-reference and taxon lookups. A microbe
// whose NCIt concept yields no taxon is retried by name.
func (p *MicroPhenoDB) resolve(ctx context.Context, assocs []phenoAssociation) (map[string][]string, map[string][]string, error) {
	var efos []string
	termOf := map[string]string{}
	var terms []string
	for _, a := range assocs {
		efos = append(efos, a.efo)
		if _, ok := termOf[a.microbe]; ok {
			continue
		}
		term := a.microbe
		if a.ncit != "" {
			term = a.ncit
		}
		termOf[a.microbe] = term
		terms = append(terms, term)
	}

	xrefs, err := idmap.BatchResolve(ctx, p.XRefs, efos, p.Workers)
	if err != nil {
		return nil, nil, fmt.Errorf("microphenodb: resolve EFO cross-references: %w", err)
	}
	byTerm, err := idmap.BatchResolve(ctx, p.Taxa, terms, p.Workers)
	if err != nil {
		return nil, nil, fmt.Errorf("microphenodb: resolve taxa: %w", err)
	}

	var retry []string
	for microbe, term := range termOf {
		if term != microbe && len(byTerm[term]) == 0 {
			retry = append(retry, microbe)
		}
	}
	if len(retry) > 0 {
		byName, err := idmap.BatchResolve(ctx, p.Taxa, retry, p.Workers)
		if err != nil {
			return nil, nil, fmt.Errorf("microphenodb: resolve taxa: %w", err)
		}
		for name, ids := range byName {
			byTerm[name] = ids
			termOf[name] = name
		}
	}

	taxa := make(map[string][]string, len(termOf))
	for microbe, term := range termOf {
		taxa[microbe] = byTerm[term]
	}
	return xrefs, taxa, nil
}

// attachDisease finds the graph nodes for a's disease and, when exactly one
// matches, enriches it. It returns every matching node id.
func (p *MicroPhenoDB) attachDisease(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger, a phenoAssociation, xrefs []string, byName map[string][]string) ([]string, error) {
	if len(xrefs) == 0 {
		return nil, nil
	}
	synonyms := append([]string{a.efo}, idmap.NormalizeAll(xrefs)...)
	ids := resolveDistinct(g, synonyms)

	if len(ids) == 0 {
		if p.Diseases == nil {
			logger.Warn("cannot find disease in graph", logging.String("disease", a.disease))
			return nil, nil
		}
		found, ok := byName[a.disease]
		if !ok {
			var err error
			if found, err = p.Diseases.Lookup(ctx, a.disease); err != nil {
				return nil, fmt.Errorf("microphenodb: resolve disease %q: %w", a.disease, err)
			}
			byName[a.disease] = found
		}
		synonyms = found
		ids = resolveDistinct(g, synonyms)
		if len(ids) == 0 {
			logger.Warn("cannot find synonyms for disease", logging.String("disease", a.disease))
			return nil, nil
		}
	}

	if len(ids) > 1 {
		logger.Warn("multiple disease nodes found", logging.String("disease", a.disease), logging.Strings("node_ids", ids))
		return ids, nil
	}

	candidate := &kg.Node{
		Type:             kg.Disease,
		Names:            kg.NewStringSet(a.disease),
		Description:      kg.NewAttributes(),
		KnowledgeSources: kg.NewStringSet("MicroPhenoDB"),
		Synonyms:         kg.NewStringSet(ids[0]),
		Links:            kg.NewStringSet(idmap.ReferenceLinks(synonyms)...),
	}
	for _, s := range validSynonyms(logger, synonyms) {
		candidate.Synonyms.Add(s)
	}
	if a.diseaseAnnotation != "" {
		candidate.Description.Merge(phenoDescriptionKey, a.diseaseAnnotation)
	}
	if _, err := g.AddNode(candidate); err != nil {
		return nil, fmt.Errorf("microphenodb disease %q: %w", a.disease, err)
	}
	return ids, nil
}

// attachMicrobe marks the graph node for a's microbe as a pathogen and
// returns its id, or "" when the microbe cannot be placed.
func (p *MicroPhenoDB) attachMicrobe(g *kg.KnowledgeGraph, logger logging.Logger, a phenoAssociation, taxa []string, lineages map[string]string) (string, error) {
	if len(taxa) == 0 {
		return "", nil
	}
	if len(taxa) > 1 {
		logger.Warn("multiple taxon ids for microbe", logging.String("microbe", a.microbe), logging.Strings("taxa", taxa))
	}
	taxid := strings.TrimPrefix(taxa[0], "NCBITaxon:")
	lineage, ok := lineages[taxid]
	if !ok {
		logger.Warn("taxon missing from lineage table", logging.String("microbe", a.microbe), logging.String("taxid", taxid))
		return "", nil
	}
	ranks := splitNonEmpty(lineage, ";")
	if len(ranks) == 0 {
		return "", nil
	}
	name := ranks[len(ranks)-1]

	var synonym string
	switch {
	case strings.Contains(lineage, "Bacteria") || strings.Contains(lineage, "Archaea"):
		synonym = "GTDB:" + name
	case strings.Contains(lineage, "Viruses") || strings.Contains(lineage, "Fungi"):
		synonym = "NCBI:" + name
	default:
		return "", nil
	}
	id, ok := g.FindNodeBySynonym(synonym)
	if !ok {
		logger.Warn("cannot find node for microbe", logging.String("microbe", a.microbe), logging.Synonym(synonym))
		return "", nil
	}

	candidate := &kg.Node{
		Type:             kg.Microbe,
		Description:      kg.NewAttributes(),
		KnowledgeSources: kg.NewStringSet("MicroPhenoDB"),
		Synonyms:         kg.NewStringSet(id),
		IsPathogen:       true,
	}
	if a.speciesAnnotation != "" {
		candidate.Description.Merge(phenoDescriptionKey, a.speciesAnnotation)
	}
	if _, err := g.AddNode(candidate); err != nil {
		return "", fmt.Errorf("microphenodb microbe %q: %w", a.microbe, err)
	}
	return id, nil
}
