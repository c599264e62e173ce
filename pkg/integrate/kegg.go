package integrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// PredicateGeneticallyAssociatedWith links a virus genome to the entities
// its genes are annotated with.
const PredicateGeneticallyAssociatedWith = "biolink:genetically_associated_with"

// KEGG processed-data file names.
const (
	KEGGSynonymsFile    = "kegg_synonyms.tsv"
	KEGGGenomesFile     = "kegg_genomes.tsv"
	KEGGKOHierarchyFile = "kegg_ko_hierarchy.tsv"
	KEGGKOGenesFile     = "kegg_ko_genes.tsv"
	KEGGVirusGenesFile  = "viruses/virus_genes.tsv"
)

// keggTable is one two-column (id, name) entity table.
type keggTable struct {
	file   string
	prefix string
	typ    kg.NodeType
	// dblinks is false for tables whose cross-references are not trusted.
	dblinks bool
}

var keggTables = []keggTable{
	{"kegg_compounds.txt", "cpd", kg.Compound, true},
	{"kegg_pathways.txt", "path", kg.Pathway, true},
	{"kegg_modules.txt", "md", kg.Module, true},
	{"kegg_koids.txt", "ko", kg.KO, true},
	{"kegg_diseases.txt", "ds", kg.Disease, true},
	{"kegg_drugs.txt", "dr", kg.Drug, true},
	{"kegg_reactions.txt", "rn", kg.Reaction, true},
	{"kegg_enzymes.txt", "ec", kg.Enzyme, true},
	{"kegg_glycans.txt", "gl", kg.Glycan, true},
	{"kegg_networks.txt", "ne", kg.Network, false},
	{"kegg_dgroups.txt", "dg", kg.DrugGroup, true},
	{"kegg_rclasses.txt", "rc", kg.Reaction, true},
}

// Link files whose source column names a genome, either by T number or by
// organism code.
var keggGenomeLinkFiles = map[string]bool{
	"link_compound_to_gn.txt": true,
	"link_module_to_gn.txt":   true,
	"link_disease_to_gn.txt":  true,
	"link_pathway_to_gn.txt":  true,
}

// Virus gene cross-reference types that do not name graph entities.
var ignoredVirusGeneLinks = map[string]bool{
	"ncbi_geneid": true, "uniprot": true, "pfam": true,
	"rs": true, "pdb": true, "ncbi_proteinid": true,
}

var microbialLineage = []string{"Archaea", "Viruses", "Bacteria", "Fungi"}

var digits = regexp.MustCompile(`\d+`)

// KEGG seeds the graph with KEGG genomes and their entities (compounds,
// pathways, modules, KOs, diseases, drugs, reactions, enzymes, glycans,
// networks and drug groups) and the links between them.
type KEGG struct {
	// DataDir is the processed KEGG data directory.
	DataDir string
	// GTDBAssignment is the GTDB-Tk summary for KEGG genomes without an
	// assembly accession. Optional.
	GTDBAssignment string
	// MicrobOnly keeps only archaea, bacteria, fungi and viruses.
	MicrobOnly   bool
	ANIThreshold float64
	AFThreshold  float64
}

func (k *KEGG) Name() string { return "kegg" }
func (k *KEGG) Version() int { return 1 }

type keggGenome struct {
	id         string
	orgCode    string
	desc       string
	taxid      string
	keywords   string
	lineage    string
	assembly   string
	sequences  []string
	ncbiName   string
	ncbiParent string
	rank       string
}

func keggGenomeSynonym(id string) string {
	return "KEGG:gn_" + id
}

// keggID turns an extractor id such as "cpd:C00001" into its synonym
// "KEGG:cpd_C00001".
func keggID(id string) string {
	return "KEGG:" + strings.ReplaceAll(id, ":", "_")
}

func keggEntryLink(prefix, id string) string {
	return "https://www.genome.jp/entry/" + prefix + ":" + id
}

func (k *KEGG) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	synPath := filepath.Join(k.DataDir, KEGGSynonymsFile)
	genomePath := filepath.Join(k.DataDir, KEGGGenomesFile)
	required := []string{synPath, genomePath}
	if k.GTDBAssignment != "" {
		required = append(required, k.GTDBAssignment)
	}
	if !tsv.CheckFiles(logger, required...) {
		return fmt.Errorf("kegg: %w", kg.ErrMissingFile)
	}

	synonyms, err := readKEGGSynonyms(synPath)
	if err != nil {
		return err
	}
	dropped := dropSharedSynonyms(synonyms)
	logger.Info("read KEGG synonyms", logging.Count(len(synonyms)), logging.Int("shared_dropped", dropped))

	assignments := map[string]*gtdbAssignment{}
	if k.GTDBAssignment != "" {
		if assignments, err = readGTDBAssignments(k.GTDBAssignment, keggGenomeSynonym, k.ANIThreshold, k.AFThreshold); err != nil {
			return err
		}
	}

	genomes, nonMicrobial, err := k.readGenomes(genomePath)
	if err != nil {
		return err
	}
	logger.Info("read KEGG genomes", logging.Count(len(genomes)))

	orgToGenome := map[string]string{}
	parents := map[string]string{}
	var children []string
	for _, gn := range genomes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if gn.orgCode != "" {
			orgToGenome[gn.orgCode] = keggGenomeSynonym(gn.id)
		}
		parent, err := k.attachGenome(g, logger, gn, assignments)
		if err != nil {
			return err
		}
		if parent != "" {
			child := keggGenomeSynonym(gn.id)
			if _, seen := parents[child]; !seen {
				children = append(children, child)
			}
			parents[child] = parent
		}
	}

	if err := k.addEntities(ctx, g, logger, synonyms, nonMicrobial); err != nil {
		return err
	}

	edges := 0
	for _, child := range children {
		parent := parents[child]
		source, _, _ := strings.Cut(parent, ":")
		edges += addBidirectional(g, parent, child, PredicateHasPart, PredicatePartOf, source)
	}
	logger.Info("connected KEGG genome hierarchy", logging.Int("edges", edges))

	if err := k.addLinks(ctx, g, logger, orgToGenome); err != nil {
		return err
	}
	return k.addVirusGeneLinks(ctx, g, logger)
}

// NormalizeKEGGKey rewrites an extractor key "KEGG:<db>:<id>" to the
// synonym form "KEGG:<db>_<id>". Organism-specific pathway keys collapse to
// the reference map, so "KEGG:path:eco00010" becomes "KEGG:path_map00010".
func NormalizeKEGGKey(key string) (string, bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	id := parts[2]
	if parts[1] == "path" {
		num := digits.FindString(id)
		if num == "" {
			return "", false
		}
		id = "map" + num
	}
	return parts[0] + ":" + parts[1] + "_" + id, true
}

// readKEGGSynonyms reads (kegg_id, synonyms) rows and unions the synonyms of
// keys that normalize to the same id.
func readKEGGSynonyms(path string) (map[string]*kg.StringSet, error) {
	out := map[string]*kg.StringSet{}
	var bad []string
	err := eachRow(path, []string{"kegg_id", "synonyms"}, func(r *tsv.Reader, row []string) {
		key, ok := NormalizeKEGGKey(r.Field(row, "kegg_id"))
		if !ok {
			bad = append(bad, r.Field(row, "kegg_id"))
			return
		}
		set, ok := out[key]
		if !ok {
			set = &kg.StringSet{}
			out[key] = set
		}
		for _, s := range splitNonEmpty(r.Field(row, "synonyms"), ";") {
			set.Add(s)
		}
	})
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("%s: malformed kegg_id %q", path, bad[0])
	}
	return out, nil
}

// dropSharedSynonyms removes every synonym that appears under more than one
// KEGG id, since it cannot identify either. It returns how many distinct
// synonyms were removed.
func dropSharedSynonyms(synonyms map[string]*kg.StringSet) int {
	count := map[string]int{}
	for _, set := range synonyms {
		for _, s := range set.Slice() {
			count[s]++
		}
	}
	shared := 0
	for _, n := range count {
		if n > 1 {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	for key, set := range synonyms {
		kept := kg.NewStringSet()
		for _, s := range set.Slice() {
			if count[s] == 1 {
				kept.Add(s)
			}
		}
		synonyms[key] = &kept
	}
	return shared
}

// readGenomes returns the genomes to integrate and the organism codes of
// genomes excluded by MicrobOnly.
func (k *KEGG) readGenomes(path string) ([]keggGenome, map[string]bool, error) {
	cols := []string{"gn_id", "org_code", "desc", "taxon_id", "keywords", "kegg_lineage",
		"assembly_id", "sequence_ids", "ncbi_full_lineage", "ncbi_rank"}
	var out []keggGenome
	excluded := map[string]bool{}
	err := eachRow(path, cols, func(r *tsv.Reader, row []string) {
		gn := keggGenome{
			id:        r.Field(row, "gn_id"),
			orgCode:   r.Field(row, "org_code"),
			desc:      r.Field(row, "desc"),
			taxid:     r.Field(row, "taxon_id"),
			keywords:  r.Field(row, "keywords"),
			lineage:   r.Field(row, "kegg_lineage"),
			assembly:  r.Field(row, "assembly_id"),
			sequences: splitNonEmpty(r.Field(row, "sequence_ids"), ";"),
			rank:      r.Field(row, "ncbi_rank"),
		}
		if gn.id == "" {
			return
		}
		lineage := splitNonEmpty(r.Field(row, "ncbi_full_lineage"), ";")
		if n := len(lineage); n > 0 {
			gn.ncbiName = lineage[n-1]
			if n > 1 {
				gn.ncbiParent = lineage[n-2]
			}
		}
		if k.MicrobOnly && !isMicrobial(gn.lineage) {
			if gn.orgCode != "" {
				excluded[gn.orgCode] = true
			}
			return
		}
		out = append(out, gn)
	})
	if err != nil {
		return nil, nil, err
	}
	return out, excluded, nil
}

func isMicrobial(lineage string) bool {
	for _, l := range microbialLineage {
		if strings.Contains(lineage, l) {
			return true
		}
	}
	return false
}

func (gn keggGenome) links() []string {
	links := []string{keggEntryLink("gn", gn.id)}
	if gn.assembly != "" {
		links = append(links, "https://www.ncbi.nlm.nih.gov/assembly/"+gn.assembly)
	}
	for _, s := range gn.sequences {
		links = append(links, "https://www.ncbi.nlm.nih.gov/nuccore/"+s)
	}
	return links
}

// attachGenome merges or creates the node for gn and returns the synonym of
// the parent a newly created node should hang under.
func (k *KEGG) attachGenome(g *kg.KnowledgeGraph, logger logging.Logger, gn keggGenome, assignments map[string]*gtdbAssignment) (string, error) {
	gnSyn := keggGenomeSynonym(gn.id)
	a := assignments[gn.id]

	target := ""
	switch {
	case gn.assembly != "":
		target = "GTDB:" + gn.assembly
	case a != nil:
		target = a.target
	}

	if target != "" {
		if id, ok := g.FindNodeBySynonym(target); ok {
			var info []kg.Attribute
			if gn.assembly == "" && a != nil && a.hasANI {
				info = a.info
			}
			return "", k.mergeGenome(g, id, gn, []string{gn.desc, gn.ncbiName}, []string{gnSyn}, info)
		}

		n := k.newGenome(gn, []string{gn.desc, gn.ncbiName}, gnSyn)
		if gn.assembly != "" {
			n.Synonyms.Add(target)
		}
		if a != nil && a.hasANI {
			for _, attr := range a.info {
				n.Description.Merge(attr.Key, attr.Value)
			}
		}
		if _, err := g.AddNode(n); err != nil {
			return "", fmt.Errorf("kegg genome %s: %w", gn.id, err)
		}
		if a != nil {
			if leaf := lowestGTDBTaxon(a.classification); leaf != "" {
				return "GTDB:" + leaf, nil
			}
		}
		return "", nil
	}

	if gn.ncbiName == "" {
		logger.Warn("KEGG genome has neither assembly nor NCBI lineage", logging.String("gn_id", gn.id))
		return "", nil
	}
	ncbiSyn := "NCBI:" + gn.ncbiName
	if id, ok := g.FindNodeBySynonym(ncbiSyn); ok {
		return "", k.mergeGenome(g, id, gn, []string{gn.desc}, []string{gnSyn, ncbiSyn}, nil)
	}
	if _, err := g.AddNode(k.newGenome(gn, []string{gn.desc}, gnSyn, ncbiSyn)); err != nil {
		return "", fmt.Errorf("kegg genome %s: %w", gn.id, err)
	}
	// The new node owns NCBI:<name> itself, so it hangs under the next
	// lineage rank up.
	if gn.ncbiParent == "" {
		return "", nil
	}
	return "NCBI:" + gn.ncbiParent, nil
}

func (k *KEGG) newGenome(gn keggGenome, names []string, synonyms ...string) *kg.Node {
	return &kg.Node{
		Type:             kg.Microbe,
		Names:            kg.NewStringSet(names...),
		Description:      kg.NewAttributes(kg.Attr("taxid", gn.taxid), kg.Attr("rank", gn.rank)),
		KnowledgeSources: kg.NewStringSet("KEGG"),
		Synonyms:         kg.NewStringSet(synonyms...),
		Links:            kg.NewStringSet(gn.links()...),
		IsPathogen:       gn.keywords == "Human pathogen",
	}
}

// mergeGenome folds gn into node id. The NCBI taxid and rank only fill gaps.
func (k *KEGG) mergeGenome(g *kg.KnowledgeGraph, id string, gn keggGenome, names, synonyms []string, info []kg.Attribute) error {
	existing, ok := g.GetNodeByID(id)
	if !ok {
		return kg.NodeNotFoundError(id)
	}
	desc := kg.NewAttributes()
	if v, _ := existing.Description.Get("taxid"); v == "" {
		desc.Merge("taxid", gn.taxid)
		desc.Merge("rank", gn.rank)
	}
	for _, attr := range info {
		desc.Merge(attr.Key, attr.Value)
	}
	candidate := &kg.Node{
		Type:             kg.Microbe,
		Names:            kg.NewStringSet(names...),
		Description:      desc,
		KnowledgeSources: kg.NewStringSet("KEGG"),
		Synonyms:         kg.NewStringSet(append([]string{id}, synonyms...)...),
		Links:            kg.NewStringSet(gn.links()...),
		IsPathogen:       gn.keywords == "Human pathogen",
	}
	if _, err := g.AddNode(candidate); err != nil {
		return fmt.Errorf("kegg genome %s: %w", gn.id, err)
	}
	return nil
}

// addEntities adds one node per row of every entity table. A table the
// extractor did not produce is skipped with a warning.
func (k *KEGG) addEntities(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger, synonyms map[string]*kg.StringSet, nonMicrobial map[string]bool) error {
	var hierarchy, genes map[string][]string
	for _, t := range keggTables {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(k.DataDir, t.file)
		if _, err := os.Stat(path); err != nil {
			logger.Warn("skipping missing KEGG table", logging.Path(path))
			continue
		}
		if t.typ == kg.KO && hierarchy == nil {
			var err error
			if hierarchy, err = readKEGGMultimap(filepath.Join(k.DataDir, KEGGKOHierarchyFile), "ko_id", "hierarchy", nil); err != nil {
				return err
			}
			if genes, err = readKEGGMultimap(filepath.Join(k.DataDir, KEGGKOGenesFile), "ko_id", "gene_id", nonMicrobial); err != nil {
				return err
			}
		}

		added := 0
		err := eachPositional(path, 2, true, func(row []string) error {
			id, name := row[0], row[1]
			syn := "KEGG:" + t.prefix + "_" + id
			n := &kg.Node{
				Type:             t.typ,
				Names:            kg.NewStringSet(name),
				Description:      kg.NewAttributes(),
				KnowledgeSources: kg.NewStringSet("KEGG"),
				Synonyms:         kg.NewStringSet(syn),
				Links:            kg.NewStringSet(keggEntryLink(t.prefix, id)),
			}
			if set, ok := synonyms[syn]; ok && t.dblinks {
				n.Synonyms.AddAll(*set)
			}
			if t.typ == kg.KO {
				for _, h := range hierarchy[id] {
					n.Description.Merge("KO_hierarchy", h)
				}
				for _, gene := range genes[id] {
					n.Description.Merge("KO_related_genes", gene)
				}
			}
			if _, err := g.AddNode(n); err != nil {
				return fmt.Errorf("%s %s: %w", t.file, id, err)
			}
			added++
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("integrated KEGG table", logging.String("table", t.file), logging.Count(added))
	}
	return nil
}

// readKEGGMultimap groups value by key over a two-column file. A missing
// file yields an empty map. Values whose organism code prefix is in skipOrg
// are dropped.
func readKEGGMultimap(path, key, value string, skipOrg map[string]bool) (map[string][]string, error) {
	out := map[string][]string{}
	if _, err := os.Stat(path); err != nil {
		return out, nil
	}
	err := eachRow(path, []string{key, value}, func(r *tsv.Reader, row []string) {
		v := r.Field(row, value)
		if org, _, ok := strings.Cut(v, ":"); ok && skipOrg[org] {
			return
		}
		k := r.Field(row, key)
		out[k] = append(out[k], v)
	})
	return out, err
}

// addLinks adds the edges listed in every link_*.txt file. An empty
// predicate cell means no edge in that direction.
func (k *KEGG) addLinks(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger, orgToGenome map[string]string) error {
	files, err := filepath.Glob(filepath.Join(k.DataDir, "link_*.txt"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		genomeLinks := keggGenomeLinkFiles[name]
		pathogenic := name == "link_disease_to_gn.txt"

		added := 0
		err := eachPositional(path, 4, true, func(row []string) error {
			source, target := row[0], row[1]
			if genomeLinks {
				_, code, _ := strings.Cut(source, ":")
				switch {
				case strings.HasPrefix(code, "T"):
					source = keggID(source)
				case orgToGenome[code] != "":
					source = orgToGenome[code]
				default:
					return nil
				}
			} else {
				source = keggID(source)
			}
			target = keggID(target)

			if pathogenic {
				if id, ok := g.FindNodeBySynonym(source); ok {
					if _, err := g.AddNode(&kg.Node{Type: kg.Microbe, Synonyms: kg.NewStringSet(id), IsPathogen: true}); err != nil {
						return err
					}
				}
			}
			if p := strings.TrimSpace(row[2]); p != "" {
				if _, ok := g.AddEdge(&kg.Edge{Source: source, Target: target, Predicate: p, KnowledgeSources: kg.NewStringSet("KEGG")}); ok {
					added++
				}
			}
			if p := strings.TrimSpace(row[3]); p != "" {
				if _, ok := g.AddEdge(&kg.Edge{Source: target, Target: source, Predicate: p, KnowledgeSources: kg.NewStringSet("KEGG")}); ok {
					added++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("integrated KEGG links", logging.String("file", name), logging.Int("edges", added))
	}
	return nil
}

// addVirusGeneLinks connects virus genomes to the entities their genes are
// annotated with.
func (k *KEGG) addVirusGeneLinks(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	genePath := filepath.Join(k.DataDir, KEGGVirusGenesFile)
	if _, err := os.Stat(genePath); err != nil {
		logger.Warn("no KEGG virus gene table, skipping gene-based links", logging.Path(genePath))
		return nil
	}
	geneToGenome := map[string]string{}
	if err := eachRow(genePath, []string{"gene_id", "gn_id"}, func(r *tsv.Reader, row []string) {
		geneToGenome[r.Field(row, "gene_id")] = keggID(r.Field(row, "gn_id"))
	}); err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(k.DataDir, "viruses", "vg_link_*_to_gene.txt"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "vg_link_"), "_to_gene.txt")
		if ignoredVirusGeneLinks[kind] {
			continue
		}
		added := 0
		err := eachPositional(path, 2, false, func(row []string) error {
			genome, ok := geneToGenome[row[0]]
			if !ok {
				return nil
			}
			for _, id := range splitNonEmpty(row[1], ";") {
				added += addBidirectional(g, genome, keggID(id),
					PredicateGeneticallyAssociatedWith, PredicateGeneticallyAssociatedWith, "KEGG")
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("integrated KEGG virus gene links", logging.String("kind", kind), logging.Int("edges", added))
	}
	return nil
}

// eachPositional calls fn for every row of a file read by position. Rows
// with fewer than width cells are padded. When header is true the first
// row is skipped.
func eachPositional(path string, width int, header bool, fn func([]string) error) error {
	cols := make([]string, width)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	var (
		r   *tsv.Reader
		err error
	)
	if header {
		r, err = tsv.Open(path)
	} else {
		r, err = tsv.OpenWithHeader(path, cols)
	}
	if err != nil {
		return err
	}
	defer r.Close()
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, r.Line()+1, err)
		}
		for len(row) < width {
			row = append(row, "")
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
