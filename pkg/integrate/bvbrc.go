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

// BV-BRC file names inside the data directory.
const (
	BVBRCRelations      = "output_subset_human_related_cleaned_metadata.tsv"
	BVBRCGenomeMetadata = "genome_metadata.txt"
)

// Disease labels in BV-BRC metadata that carry no disease.
var ignoredDiseaseNames = map[string]bool{
	"other": true, "Not connected": true, "agn": true, "and sepsis": true,
	"and soft tissue infections.": true, "healthy": true, "healthy controls": true,
	"healty": true, "lrti": true, "pcs": true,
}

// Spelling fixes and coarsening for BV-BRC disease labels.
var diseaseNameFixes = map[string]string{
	"Seticemic plague":                          "Septicemic plague",
	"empiem":                                    "empyema",
	"Legionaires' disease":                      "Legionnaires' Disease",
	"Bone and joint infection":                  "Bone and joint infections",
	"meniigitis":                                "meningitis",
	"Peridontitis":                              "Periodontitis",
	"Gastrointeritis":                           "Gastroenteritis",
	"Wide range of infections":                  "Infection",
	"severe pneumonia":                          "Pneumonia",
	"bacteremic pneumonia":                      "Pneumonia",
	"Various infections":                        "Infection",
	"bacteriemia":                               "Bacteremia",
	"bacterimia":                                "Bacteremia",
	"Chorioamnioitis":                           "Chorioamnionitis",
	"Gaslrointestinal perforation":              "Gastrointestinal perforation",
	"respritory tract infection":                "Respiratory Tract Infection",
	"inflammatory Diarrheal disease":            "Diarrheal disorder",
	"Sepsis of The Newbornl":                    "Sepsis of The Newborn",
	"haematological malignancies":               "hematological malignancies",
	"Hemoptoic pneumonia":                       "Pneumonia",
	"Necrotizing faciitis":                      "Necrotizing fasciitis",
	"streptococcal toxic shock syndrome (STSS)": "streptococcal toxic shock syndrome",
}

// Labels that name several diseases and are looked up piecewise.
var compoundDiseaseNames = map[string][]string{
	"Urinary tract and respiratory infections": {"Respiratory Tract Infections", "Urinary tract infection"},
}

// CleanDiseaseName fixes known misspellings. It returns "" for labels that
// do not name a disease.
func CleanDiseaseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || ignoredDiseaseNames[name] {
		return ""
	}
	if fixed, ok := diseaseNameFixes[name]; ok {
		return fixed
	}
	return name
}

// SplitDiseases splits a BV-BRC disease field on ';', ',' and '/' and
// cleans every part.
func SplitDiseases(field string) []string {
	var out []string
	for _, a := range strings.Split(field, ";") {
		for _, b := range strings.Split(a, ",") {
			for _, c := range strings.Split(b, "/") {
				if name := CleanDiseaseName(c); name != "" {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

// BVBRC attaches pathogenic genomes from BV-BRC to the microbe hierarchy
// and links them to the diseases they were isolated from.
type BVBRC struct {
	DataDir string
	// GTDBAssignment is the GTDB-Tk summary for the BV-BRC genomes.
	GTDBAssignment string
	// Lineage is a taxonkit lineage table (TaxID, Rank, Lineage).
	Lineage string
	// A genome merges into its fastANI reference only when both values
	// reach these thresholds. Zero accepts any numeric value.
	ANIThreshold float64
	AFThreshold  float64
	// Diseases resolves disease names to graph synonyms.
	Diseases idmap.Oracle
	Workers  int
}

func (b *BVBRC) Name() string { return "bvbrc" }
func (b *BVBRC) Version() int { return 4 }

type genomeRecord struct {
	genomeID   string
	accession  string
	diseases   string
	genomeName string
	taxid      string
	rank       string
	lineage    string
}

func (b *BVBRC) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	relPath := filepath.Join(b.DataDir, BVBRCRelations)
	metaPath := filepath.Join(b.DataDir, BVBRCGenomeMetadata)
	if !tsv.CheckFiles(logger, b.GTDBAssignment, relPath, metaPath, b.Lineage) {
		return fmt.Errorf("bvbrc: %w", kg.ErrMissingFile)
	}

	assignments, err := b.readAssignments()
	if err != nil {
		return err
	}
	genomes, err := readGenomes(relPath, metaPath, b.Lineage)
	if err != nil {
		return err
	}
	logger.Info("read BV-BRC genomes", logging.Count(len(genomes)))

	diseaseSynonyms, err := b.resolveDiseases(ctx, logger, genomes)
	if err != nil {
		return err
	}

	parents := map[string]string{}
	var children []string
	for _, rec := range genomes {
		if err := ctx.Err(); err != nil {
			return err
		}
		parent, err := b.attachGenome(g, logger, rec, assignments)
		if err != nil {
			return err
		}
		child := genomeSynonym(rec.genomeID)
		if parent != "" {
			if _, seen := parents[child]; !seen {
				children = append(children, child)
			}
			parents[child] = parent
		}
	}

	for _, child := range children {
		addBidirectional(g, parents[child], child, PredicateHasPart, PredicatePartOf, "BVBRC")
	}

	for _, rec := range genomes {
		genomeID, ok := g.FindNodeBySynonym(genomeSynonym(rec.genomeID))
		if !ok {
			continue
		}
		for _, name := range SplitDiseases(rec.diseases) {
			ids := resolveDistinct(g, diseaseSynonyms[name])
			if len(ids) > 1 {
				logger.Warn("multiple disease nodes found", logging.String("disease", name), logging.Strings("node_ids", ids))
			}
			for _, d := range ids {
				addBidirectional(g, genomeID, d, PredicateAssociatedWith, PredicateAssociatedWith, "BVBRC")
			}
		}
	}
	return nil
}

func genomeSynonym(genomeID string) string {
	return "BVBRC:gn_" + genomeID
}

// resolveDiseases maps every cleaned disease label to its synonyms.
func (b *BVBRC) resolveDiseases(ctx context.Context, logger logging.Logger, genomes []genomeRecord) (map[string][]string, error) {
	out := map[string][]string{}
	if b.Diseases == nil {
		logger.Warn("no disease resolver configured; genomes will not be linked to diseases")
		return out, nil
	}

	var labels, lookups []string
	seen := map[string]bool{}
	for _, rec := range genomes {
		for _, name := range SplitDiseases(rec.diseases) {
			if seen[name] {
				continue
			}
			seen[name] = true
			labels = append(labels, name)
			if parts, ok := compoundDiseaseNames[name]; ok {
				lookups = append(lookups, parts...)
			} else {
				lookups = append(lookups, name)
			}
		}
	}

	resolved, err := idmap.BatchResolve(ctx, b.Diseases, lookups, b.Workers)
	if err != nil {
		return nil, fmt.Errorf("bvbrc: resolve diseases: %w", err)
	}
	for _, name := range labels {
		parts := []string{name}
		if p, ok := compoundDiseaseNames[name]; ok {
			parts = p
		}
		set := kg.NewStringSet()
		for _, p := range parts {
			for _, s := range resolved[p] {
				set.Add(s)
			}
		}
		if set.Len() == 0 {
			logger.Warn("cannot find synonyms for disease", logging.String("disease", name))
			continue
		}
		out[name] = set.Slice()
	}
	return out, nil
}

// attachGenome merges one genome into the graph and returns the synonym of
// its GTDB parent when a new genome node was created.
func (b *BVBRC) attachGenome(g *kg.KnowledgeGraph, logger logging.Logger, rec genomeRecord, assignments map[string]*gtdbAssignment) (string, error) {
	gn := genomeSynonym(rec.genomeID)
	a := assignments[rec.genomeID]

	if rec.accession != "" {
		if id, ok := g.FindNodeBySynonym("GTDB:" + rec.accession); ok {
			links := append(gtdbGenomeLinks(rec.accession), bvbrcGenomeLink(rec.genomeID))
			return "", b.mergeGenome(g, id, rec, a, links)
		}
	}

	switch {
	case a != nil:
		if id, ok := g.FindNodeBySynonym(a.target); ok {
			links := []string{bvbrcGenomeLink(rec.genomeID)}
			if rec.accession != "" {
				links = append(links, gtdbGenomeLinks(rec.accession)...)
			}
			return "", b.mergeGenome(g, id, rec, a, links)
		}
		if strings.Contains(a.classification, "Unclassified") {
			return "", nil
		}

		n := &kg.Node{
			Type:             kg.Microbe,
			Names:            kg.NewStringSet(rec.genomeName),
			Description:      kg.NewAttributes(kg.Attr("taxid", rec.taxid), kg.Attr("rank", rec.rank)),
			KnowledgeSources: kg.NewStringSet("BVBRC"),
			Synonyms:         kg.NewStringSet(gn),
			Links:            kg.NewStringSet(bvbrcGenomeLink(rec.genomeID)),
			IsPathogen:       true,
		}
		if a.hasANI {
			for _, attr := range a.info {
				n.Description.Merge(attr.Key, attr.Value)
			}
		}
		if rec.accession != "" {
			n.Synonyms.Add("GTDB:" + rec.accession)
			for _, l := range gtdbGenomeLinks(rec.accession) {
				n.Links.Add(l)
			}
		}
		if _, err := g.AddNode(n); err != nil {
			return "", fmt.Errorf("bvbrc genome %s: %w", rec.genomeID, err)
		}
		if leaf := lowestGTDBTaxon(a.classification); leaf != "" {
			return "GTDB:" + leaf, nil
		}
		return "", nil

	case strings.Contains(rec.lineage, "Viruses;"):
		id, ok := g.FindNodeBySynonym("NCBI:" + rec.genomeName)
		if !ok {
			logger.Warn("virus genome not in hierarchy", logging.String("genome_id", rec.genomeID), logging.String("name", rec.genomeName))
			return "", nil
		}
		links := []string{bvbrcGenomeLink(rec.genomeID)}
		if rec.accession != "" {
			links = append([]string{"https://www.ncbi.nlm.nih.gov/assembly/" + rec.accession}, links...)
		}
		return "", b.mergeGenome(g, id, rec, nil, links)
	}

	logger.Warn("genome missing from GTDB assignment", logging.String("genome_id", rec.genomeID))
	return "", nil
}

// mergeGenome folds genome rec into existing node id. The NCBI taxid and
// rank only fill gaps; they never add a second value.
func (b *BVBRC) mergeGenome(g *kg.KnowledgeGraph, id string, rec genomeRecord, a *gtdbAssignment, links []string) error {
	existing, ok := g.GetNodeByID(id)
	if !ok {
		return kg.NodeNotFoundError(id)
	}
	desc := kg.NewAttributes()
	if v, _ := existing.Description.Get("taxid"); v == "" {
		desc.Merge("taxid", rec.taxid)
		if r, _ := existing.Description.Get("rank"); r == "" {
			desc.Merge("rank", rec.rank)
		}
	}
	if a != nil && a.hasANI {
		for _, attr := range a.info {
			desc.Merge(attr.Key, attr.Value)
		}
	}

	candidate := &kg.Node{
		Type:             kg.Microbe,
		Names:            kg.NewStringSet(),
		Description:      desc,
		KnowledgeSources: kg.NewStringSet("BVBRC"),
		Links:            kg.NewStringSet(links...),
		Synonyms:         kg.NewStringSet(id, genomeSynonym(rec.genomeID)),
		IsPathogen:       true,
	}
	if rec.genomeName != "" {
		candidate.Names.Add(rec.genomeName)
	}
	if _, err := g.AddNode(candidate); err != nil {
		return fmt.Errorf("bvbrc genome %s: %w", rec.genomeID, err)
	}
	return nil
}

// lowestGTDBTaxon returns the most specific named rank of a GTDB
// classification such as "d__Bacteria;...;g__Escherichia;s__".
func lowestGTDBTaxon(classification string) string {
	ranks := strings.Split(classification, ";")
	for i := len(ranks) - 1; i >= 0; i-- {
		_, name, ok := strings.Cut(strings.TrimSpace(ranks[i]), "__")
		if ok && name != "" {
			return name
		}
	}
	return ""
}

func (b *BVBRC) readAssignments() (map[string]*gtdbAssignment, error) {
	return readGTDBAssignments(b.GTDBAssignment, genomeSynonym, b.ANIThreshold, b.AFThreshold)
}

// readGenomes joins the relation table with genome metadata and lineage
// and keeps archaea, bacteria and viruses with a disease annotation.
func readGenomes(relPath, metaPath, lineagePath string) ([]genomeRecord, error) {
	type meta struct{ name, taxid string }
	metadata := map[string]meta{}
	if err := eachRow(metaPath, []string{"genome_id", "genome_name", "taxon_id"}, func(r *tsv.Reader, row []string) {
		metadata[r.Field(row, "genome_id")] = meta{r.Field(row, "genome_name"), r.Field(row, "taxon_id")}
	}); err != nil {
		return nil, err
	}

	type lineage struct{ rank, lineage string }
	lineages := map[string]lineage{}
	if err := eachRow(lineagePath, []string{"TaxID", "Rank", "Lineage"}, func(r *tsv.Reader, row []string) {
		lineages[r.Field(row, "TaxID")] = lineage{r.Field(row, "Rank"), r.Field(row, "Lineage")}
	}); err != nil {
		return nil, err
	}

	var out []genomeRecord
	err := eachRow(relPath, []string{"genome_id", "assembly_accession", "disease"}, func(r *tsv.Reader, row []string) {
		rec := genomeRecord{
			genomeID:  r.Field(row, "genome_id"),
			accession: r.Field(row, "assembly_accession"),
			diseases:  r.Field(row, "disease"),
		}
		if rec.diseases == "" {
			return
		}
		m := metadata[rec.genomeID]
		rec.genomeName, rec.taxid = m.name, m.taxid
		l, ok := lineages[rec.taxid]
		if !ok {
			return
		}
		rec.rank, rec.lineage = l.rank, l.lineage
		if !strings.Contains(rec.lineage, "Archaea") &&
			!strings.Contains(rec.lineage, "Bacteria") &&
			!strings.Contains(rec.lineage, "Viruses") {
			return
		}
		out = append(out, rec)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func eachRow(path string, required []string, fn func(*tsv.Reader, []string)) error {
	return eachRowWith(tsv.Open, path, required, fn)
}

// eachRowWith is eachRow over a reader built by open.
func eachRowWith(open func(string) (*tsv.Reader, error), path string, required []string, fn func(*tsv.Reader, []string)) error {
	r, err := open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Require(required...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, r.Line()+1, err)
		}
		fn(r, row)
	}
}
