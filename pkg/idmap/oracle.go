// Package idmap resolves free-text names and foreign identifiers to
// synonyms the knowledge graph understands. Lookups happen before records
// reach the merge engine; the engine itself never calls out.
package idmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// Oracle maps a term (a name or a curie) to candidate identifiers. An empty
// result with a nil error means the oracle knows nothing about the term.
type Oracle interface {
	Lookup(ctx context.Context, term string) ([]string, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, term string) ([]string, error)

func (f OracleFunc) Lookup(ctx context.Context, term string) ([]string, error) {
	return f(ctx, term)
}

// HTTPStatusError is a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: network failures,
// 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// retrier repeats an operation with a fixed delay for as long as it fails
// transiently. There is no attempt limit; only ctx ends the loop.
type retrier struct {
	name    string
	delay   time.Duration
	logger  logging.Logger
	metrics *metrics.Registry
}

func (r retrier) do(ctx context.Context, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			r.metrics.RecordOracleRequest(r.name, "ok")
			return nil
		}
		if !IsTransient(err) {
			r.metrics.RecordOracleRequest(r.name, "error")
			return err
		}

		r.metrics.RecordOracleRetry(r.name)
		r.logger.Warn("oracle request failed, retrying",
			logging.String("oracle", r.name),
			logging.Int("attempt", attempt),
			logging.Duration("delay", r.delay),
			logging.Error(err))

		t := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			r.metrics.RecordOracleRequest(r.name, "canceled")
			return ctx.Err()
		case <-t.C:
		}
	}
}

// doOnce performs req and returns the body of a 2xx response.
func doOnce(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return raw, nil
}

// ClientOptions configures the HTTP oracles.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	RetryDelay time.Duration
	Logger     logging.Logger
	Metrics    *metrics.Registry
}

func (o ClientOptions) withDefaults(baseURL string) ClientOptions {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}
