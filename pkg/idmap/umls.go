package idmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dd0wney/microbekg/pkg/logging"
)

const DefaultUMLSURL = "https://uts-ws.nlm.nih.gov/rest/search/current"

// UMLSClient looks names up through the UMLS Terminology Services search
// endpoint and returns the top hit as "UMLS:<CUI>".
type UMLSClient struct {
	apiKey  string
	opts    ClientOptions
	retrier retrier
}

// NewUMLSClient creates a client. apiKey must be non-empty.
func NewUMLSClient(apiKey string, opts ClientOptions) (*UMLSClient, error) {
	if apiKey == "" {
		return nil, errors.New("umls: api key is required")
	}
	opts = opts.withDefaults(DefaultUMLSURL)
	return &UMLSClient{
		apiKey: apiKey,
		opts:   opts,
		retrier: retrier{
			name:    "umls",
			delay:   opts.RetryDelay,
			logger:  opts.Logger.With(logging.Component("umls")),
			metrics: opts.Metrics,
		},
	}, nil
}

type umlsResponse struct {
	Result struct {
		Results []struct {
			UI   string `json:"ui"`
			Name string `json:"name"`
		} `json:"results"`
	} `json:"result"`
}

// Lookup returns at most one curie. Non-transient HTTP failures yield no
// result rather than an error, so a single unknown name does not stop a pass.
func (c *UMLSClient) Lookup(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("string", name)
	q.Set("apiKey", c.apiKey)
	q.Set("pageNumber", "0")

	var raw []byte
	err := c.retrier.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		raw, err = doOnce(c.opts.HTTPClient, req)
		return err
	})
	if err != nil {
		var se *HTTPStatusError
		if errors.As(err, &se) {
			c.retrier.logger.Warn("umls lookup failed", logging.String("name", name), logging.Int("status", se.StatusCode))
			return nil, nil
		}
		return nil, err
	}

	var resp umlsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("umls: decode response for %q: %w", name, err)
	}
	results := resp.Result.Results
	if len(results) == 0 || results[0].UI == "" || results[0].UI == "NONE" {
		return nil, nil
	}
	return []string{"UMLS:" + results[0].UI}, nil
}
