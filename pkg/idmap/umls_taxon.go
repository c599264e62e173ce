package idmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dd0wney/microbekg/pkg/logging"
)

const DefaultUMLSContentURL = "https://uts-ws.nlm.nih.gov/rest/content/current"

// UMLSTaxonClient maps an organism concept to NCBI Taxonomy ids through the
// UMLS content API. The term is an NCIt curie ("NCIT:C86498") or a UMLS
// curie ("UMLS:C0014834"); results are "NCBITaxon:<id>".
type UMLSTaxonClient struct {
	apiKey  string
	opts    ClientOptions
	retrier retrier
}

// NewUMLSTaxonClient creates a client. apiKey must be non-empty.
func NewUMLSTaxonClient(apiKey string, opts ClientOptions) (*UMLSTaxonClient, error) {
	if apiKey == "" {
		return nil, errors.New("umls: api key is required")
	}
	opts = opts.withDefaults(DefaultUMLSContentURL)
	return &UMLSTaxonClient{
		apiKey: apiKey,
		opts:   opts,
		retrier: retrier{
			name:    "umls_taxon",
			delay:   opts.RetryDelay,
			logger:  opts.Logger.With(logging.Component("umls_taxon")),
			metrics: opts.Metrics,
		},
	}, nil
}

type umlsAtoms struct {
	Result []struct {
		Concept    string `json:"concept"`
		RootSource string `json:"rootSource"`
		Name       string `json:"name"`
		Code       string `json:"code"`
	} `json:"result"`
}

type umlsConcept struct {
	Result struct {
		Name string `json:"name"`
	} `json:"result"`
}

// Lookup returns the NCBI taxa attached to the concept. Atoms whose name
// matches the concept's preferred name win; otherwise every NCBI atom is
// returned. Unknown concepts yield nil.
func (c *UMLSTaxonClient) Lookup(ctx context.Context, term string) ([]string, error) {
	prefix, value, ok := SplitCurie(term)
	if !ok {
		return nil, nil
	}

	var cui string
	switch prefix {
	case "NCIT":
		var atoms umlsAtoms
		found, err := c.get(ctx, "/source/NCI/"+url.PathEscape(value)+"/atoms", &atoms)
		if err != nil || !found || len(atoms.Result) == 0 {
			return nil, err
		}
		cui = path.Base(atoms.Result[0].Concept)
	case "UMLS":
		cui = value
	default:
		return nil, nil
	}
	if cui == "" || cui == "." || cui == "/" {
		return nil, nil
	}

	var concept umlsConcept
	found, err := c.get(ctx, "/CUI/"+url.PathEscape(cui), &concept)
	if err != nil || !found {
		return nil, err
	}
	var atoms umlsAtoms
	found, err = c.get(ctx, "/CUI/"+url.PathEscape(cui)+"/atoms", &atoms)
	if err != nil || !found {
		return nil, err
	}

	var preferred, all []string
	seenPreferred, seenAll := map[string]bool{}, map[string]bool{}
	for _, a := range atoms.Result {
		if a.RootSource != "NCBI" {
			continue
		}
		id := path.Base(a.Code)
		if id == "" || id == "." || id == "/" {
			continue
		}
		taxon := "NCBITaxon:" + id
		if !seenAll[taxon] {
			seenAll[taxon] = true
			all = append(all, taxon)
		}
		if strings.EqualFold(a.Name, concept.Result.Name) && !seenPreferred[taxon] {
			seenPreferred[taxon] = true
			preferred = append(preferred, taxon)
		}
	}
	if len(preferred) > 0 {
		return preferred, nil
	}
	return all, nil
}

// get decodes the JSON body at endpoint into out. A non-transient HTTP
// failure reports found=false with a nil error.
func (c *UMLSTaxonClient) get(ctx context.Context, endpoint string, out any) (bool, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)

	var raw []byte
	err := c.retrier.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		raw, err = doOnce(c.opts.HTTPClient, req)
		return err
	})
	if err != nil {
		var se *HTTPStatusError
		if errors.As(err, &se) {
			c.retrier.logger.Debug("umls concept request failed", logging.String("endpoint", endpoint), logging.Int("status", se.StatusCode))
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("umls: decode %s: %w", endpoint, err)
	}
	return true, nil
}
