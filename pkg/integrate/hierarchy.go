package integrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/tsv"
)

// Hierarchy builds the microbial taxonomy backbone from per-kingdom
// parent/child tables (bacteria_*.tsv, archaea_*.tsv, viruses_*.tsv,
// fungi_*.tsv). Bacteria and archaea come from GTDB; their genome
// accessions are named through the GTDB metadata files. Viruses and fungi
// come from NCBI.
type Hierarchy struct {
	DataDir          string
	BacteriaMetadata string
	ArchaeaMetadata  string
}

func (h *Hierarchy) Name() string { return "hierarchy" }
func (h *Hierarchy) Version() int { return 2 }

// Columns of a hierarchy table, by position.
const (
	colParent = iota
	colParentRank
	colParentTaxid
	colChild
	colChildRank
	colChildTaxid
	hierarchyColumns
)

type taxon struct {
	name  string
	rank  string
	taxid string
}

func (h *Hierarchy) Run(ctx context.Context, g *kg.KnowledgeGraph, logger logging.Logger) error {
	if !tsv.CheckFiles(logger, h.BacteriaMetadata, h.ArchaeaMetadata) {
		return fmt.Errorf("hierarchy: %w", kg.ErrMissingFile)
	}
	names := map[string]string{}
	for _, path := range []string{h.BacteriaMetadata, h.ArchaeaMetadata} {
		logger.Info("reading GTDB metadata", logging.Path(path))
		if err := readOrganismNames(path, names); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(h.DataDir)
	if err != nil {
		return fmt.Errorf("hierarchy: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		kingdom, _, _ := strings.Cut(file, "_")
		var source string
		switch kingdom {
		case "viruses", "fungi":
			source = "NCBI"
		case "bacteria", "archaea":
			source = "GTDB"
		default:
			logger.Warn("skipping file of unknown kingdom", logging.Path(file))
			continue
		}
		path := filepath.Join(h.DataDir, file)
		logger.Info("integrating hierarchy file", logging.Path(path), logging.Source(source))
		if err := h.integrateFile(g, logger, path, source, names); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hierarchy) integrateFile(g *kg.KnowledgeGraph, logger logging.Logger, path, source string, names map[string]string) error {
	r, err := tsv.Open(path)
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
		if len(row) < hierarchyColumns {
			logger.Warn("skipping short hierarchy row", logging.Path(path), logging.Int("line", r.Line()))
			continue
		}

		parent := taxon{row[colParent], row[colParentRank], row[colParentTaxid]}
		child := taxon{row[colChild], row[colChildRank], row[colChildTaxid]}

		var parentNode, childNode *kg.Node
		if source == "NCBI" {
			parentNode, childNode = ncbiTaxonNode(parent), ncbiTaxonNode(child)
		} else {
			parentNode = gtdbTaxonNode(logger, parent, names)
			childNode = gtdbTaxonNode(logger, child, names)
		}

		parentID, err := g.AddNode(parentNode)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, r.Line(), err)
		}
		childID, err := g.AddNode(childNode)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, r.Line(), err)
		}
		if parentID == "" || childID == "" {
			continue
		}
		addBidirectional(g, parentID, childID, PredicateHasPart, PredicatePartOf, source)
	}
}

func ncbiTaxonNode(t taxon) *kg.Node {
	link := ncbiTaxonNameLink(t.name)
	if t.taxid != "" {
		link = ncbiTaxonLink(t.taxid)
	}
	return &kg.Node{
		Type:             kg.Microbe,
		Names:            kg.NewStringSet(t.name),
		Description:      kg.NewAttributes(kg.Attr("rank", t.rank), kg.Attr("taxid", t.taxid)),
		KnowledgeSources: kg.NewStringSet("NCBI"),
		Links:            kg.NewStringSet(link),
		Synonyms:         kg.NewStringSet("NCBI:" + t.name),
	}
}

// gtdbTaxonNode handles both taxa and genomes. Genome accessions carry a
// GB_ or RS_ database prefix that is dropped from the synonym.
func gtdbTaxonNode(logger logging.Logger, t taxon, names map[string]string) *kg.Node {
	n := &kg.Node{
		Type:             kg.Microbe,
		Description:      kg.NewAttributes(kg.Attr("rank", t.rank), kg.Attr("taxid", t.taxid)),
		KnowledgeSources: kg.NewStringSet("GTDB"),
	}
	name := t.name
	if db, accession, ok := strings.Cut(t.name, "_"); ok && (db == "GB" || db == "RS") {
		organism, known := names[t.name]
		if !known {
			logger.Warn("genome missing from GTDB metadata", logging.String("accession", t.name))
			organism = accession
		}
		n.Names = kg.NewStringSet(organism)
		for _, l := range gtdbGenomeLinks(accession) {
			n.Links.Add(l)
		}
		name = accession
	} else {
		n.Names = kg.NewStringSet(t.name)
	}
	if t.taxid != "" {
		n.Links.Add(ncbiTaxonLink(t.taxid))
	}
	n.Synonyms = kg.NewStringSet("GTDB:" + name)
	return n
}

func readOrganismNames(path string, names map[string]string) error {
	r, err := tsv.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Require("accession", "ncbi_organism_name"); err != nil {
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
		names[r.Field(row, "accession")] = r.Field(row, "ncbi_organism_name")
	}
}
