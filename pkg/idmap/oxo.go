package idmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/microbekg/pkg/logging"
)

const DefaultOxOURL = "https://www.ebi.ac.uk/spot/oxo/api/search"

// OxOClient queries the EMBL-EBI OxO cross-reference service.
type OxOClient struct {
	opts     ClientOptions
	retrier  retrier
	distance int
	targets  []string
}

// NewOxOClient creates a client. Lookup uses distance (1 to 3) and, if
// non-empty, restricts results to the given target prefixes.
func NewOxOClient(distance int, targets []string, opts ClientOptions) *OxOClient {
	opts = opts.withDefaults(DefaultOxOURL)
	if distance < 1 || distance > 3 {
		distance = 1
	}
	return &OxOClient{
		opts:     opts,
		distance: distance,
		targets:  append([]string(nil), targets...),
		retrier: retrier{
			name:    "oxo",
			delay:   opts.RetryDelay,
			logger:  opts.Logger.With(logging.Component("oxo")),
			metrics: opts.Metrics,
		},
	}
}

// Mapping is one cross-reference returned by OxO.
type Mapping struct {
	Curie    string `json:"curie"`
	Label    string `json:"label"`
	Distance int    `json:"distance"`
}

type oxoRequest struct {
	IDs           []string `json:"ids"`
	Distance      int      `json:"distance"`
	MappingTarget []string `json:"mappingTarget,omitempty"`
}

type oxoResponse struct {
	Embedded struct {
		SearchResults []struct {
			QueryID             string    `json:"queryId"`
			MappingResponseList []Mapping `json:"mappingResponseList"`
		} `json:"searchResults"`
	} `json:"_embedded"`
}

// Search returns the mappings of each queried id. A non-transient HTTP
// failure yields an empty map.
func (c *OxOClient) Search(ctx context.Context, ids []string, targets []string, distance int) (map[string][]Mapping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(oxoRequest{IDs: ids, Distance: distance, MappingTarget: targets})
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = c.retrier.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		raw, err = doOnce(c.opts.HTTPClient, req)
		return err
	})
	if err != nil {
		var se *HTTPStatusError
		if errors.As(err, &se) {
			c.retrier.logger.Warn("oxo search failed", logging.Strings("ids", ids), logging.Int("status", se.StatusCode))
			return map[string][]Mapping{}, nil
		}
		return nil, err
	}

	var resp oxoResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("oxo: decode response: %w", err)
	}
	out := make(map[string][]Mapping, len(resp.Embedded.SearchResults))
	for _, r := range resp.Embedded.SearchResults {
		out[r.QueryID] = append(out[r.QueryID], r.MappingResponseList...)
	}
	return out, nil
}

// Lookup returns the curies mapped to curie within the configured distance.
func (c *OxOClient) Lookup(ctx context.Context, curie string) ([]string, error) {
	res, err := c.Search(ctx, []string{curie}, c.targets, c.distance)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range res[curie] {
		if m.Distance <= c.distance {
			out = append(out, m.Curie)
		}
	}
	return out, nil
}
