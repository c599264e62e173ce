package idmap

import (
	"context"
	"strings"

	"github.com/dd0wney/microbekg/pkg/logging"
)

// DiseaseResolver turns a free-text disease name into graph synonyms: the
// name is looked up in UMLS, the resulting CUI is expanded through OxO
// cross-references, and everything is normalized onto the accepted disease
// vocabularies.
type DiseaseResolver struct {
	Names  Oracle // name -> UMLS curie
	XRefs  Oracle // curie -> related curies; may be nil
	Logger logging.Logger
}

// Resolve returns the normalized synonyms for name, or nil if the name is
// unknown.
func (r *DiseaseResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	hits, err := r.Names.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	curies := append([]string(nil), hits...)
	if r.XRefs != nil {
		for _, h := range hits {
			mapped, err := r.XRefs.Lookup(ctx, h)
			if err != nil {
				return nil, err
			}
			curies = append(curies, mapped...)
		}
	}

	out := NormalizeAll(curies)
	if r.Logger != nil {
		r.Logger.Debug("resolved disease name",
			logging.String("name", name),
			logging.Synonyms(out))
	}
	return out, nil
}

// Lookup lets a DiseaseResolver be used wherever an Oracle is expected,
// including behind a cache.
func (r *DiseaseResolver) Lookup(ctx context.Context, name string) ([]string, error) {
	return r.Resolve(ctx, name)
}

// TaxonResolver maps a microbe to NCBI Taxonomy curies. An NCIt curie goes
// straight to Taxa; any other term is treated as a name and looked up in
// Names first.
type TaxonResolver struct {
	Names Oracle // name -> UMLS curie
	Taxa  Oracle // NCIt or UMLS curie -> NCBITaxon curies
}

func (r *TaxonResolver) Lookup(ctx context.Context, term string) ([]string, error) {
	if strings.HasPrefix(term, "NCIT:") {
		return r.Taxa.Lookup(ctx, term)
	}
	hits, err := r.Names.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		taxa, err := r.Taxa.Lookup(ctx, h)
		if err != nil {
			return nil, err
		}
		for _, t := range taxa {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}
