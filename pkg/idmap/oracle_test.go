package idmap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dd0wney/microbekg/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
)

func fastOpts(url string) ClientOptions {
	return ClientOptions{BaseURL: url, RetryDelay: time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&HTTPStatusError{StatusCode: 500}, true},
		{&HTTPStatusError{StatusCode: 503}, true},
		{&HTTPStatusError{StatusCode: 429}, true},
		{&HTTPStatusError{StatusCode: 404}, false},
		{&HTTPStatusError{StatusCode: 401}, false},
		{io.ErrUnexpectedEOF, true},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestUMLSLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "secret" {
			t.Errorf("Expected apiKey=secret, got %q", r.URL.Query().Get("apiKey"))
		}
		switch r.URL.Query().Get("string") {
		case "sepsis":
			w.Write([]byte(`{"result":{"results":[{"ui":"C0243026","name":"Sepsis"},{"ui":"C1","name":"other"}]}}`))
		case "unknown":
			w.Write([]byte(`{"result":{"results":[{"ui":"NONE","name":"NO RESULTS"}]}}`))
		default:
			w.Write([]byte(`{"result":{"results":[]}}`))
		}
	}))
	defer srv.Close()

	c, err := NewUMLSClient("secret", fastOpts(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := c.Lookup(ctx, "sepsis")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"UMLS:C0243026"}) {
		t.Errorf("Expected [UMLS:C0243026], got %v", got)
	}
	for _, name := range []string{"unknown", "nothing", ""} {
		got, err := c.Lookup(ctx, name)
		if err != nil || got != nil {
			t.Errorf("Lookup(%q) = %v, %v; want nil, nil", name, got, err)
		}
	}
}

func TestUMLSRequiresKey(t *testing.T) {
	if _, err := NewUMLSClient("", ClientOptions{}); err == nil {
		t.Fatal("Expected error for empty api key")
	}
}

func TestUMLSRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"result":{"results":[{"ui":"C0000001"}]}}`))
	}))
	defer srv.Close()

	reg := metrics.NewRegistry()
	opts := fastOpts(srv.URL)
	opts.Metrics = reg
	c, _ := NewUMLSClient("k", opts)

	got, err := c.Lookup(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "UMLS:C0000001" {
		t.Errorf("Expected UMLS:C0000001, got %v", got)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}

	var m dto.Metric
	if err := reg.OracleRetriesTotal.WithLabelValues("umls").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 2 {
		t.Errorf("Expected 2 retries recorded, got %v", m.Counter.GetValue())
	}
}

func TestUMLSPermanentFailureIsNoResult(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewUMLSClient("k", fastOpts(srv.URL))
	got, err := c.Lookup(context.Background(), "x")
	if err != nil || got != nil {
		t.Fatalf("Expected nil, nil; got %v, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single call, got %d", calls.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := fastOpts(srv.URL)
	opts.RetryDelay = 10 * time.Millisecond
	c, _ := NewUMLSClient("k", opts)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Lookup(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestOxOSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var req oxoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if len(req.IDs) != 1 || req.IDs[0] != "UMLS:C0243026" {
			t.Errorf("Unexpected ids %v", req.IDs)
		}
		if req.Distance != 2 {
			t.Errorf("Expected distance 2, got %d", req.Distance)
		}
		w.Write([]byte(`{"_embedded":{"searchResults":[{"queryId":"UMLS:C0243026","mappingResponseList":[
			{"curie":"MESH:D018805","label":"Sepsis","distance":1},
			{"curie":"ICD10:A41.9","label":"Sepsis","distance":2},
			{"curie":"MONDO:0100241","label":"sepsis","distance":3}
		]}]}}`))
	}))
	defer srv.Close()

	c := NewOxOClient(2, nil, fastOpts(srv.URL))
	got, err := c.Lookup(context.Background(), "UMLS:C0243026")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"MESH:D018805", "ICD10:A41.9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestOxOClampsDistance(t *testing.T) {
	for _, d := range []int{0, -1, 4} {
		if c := NewOxOClient(d, nil, ClientOptions{}); c.distance != 1 {
			t.Errorf("NewOxOClient(%d).distance = %d, want 1", d, c.distance)
		}
	}
}

func TestDiseaseResolver(t *testing.T) {
	names := OracleFunc(func(_ context.Context, name string) ([]string, error) {
		if name == "sepsis" {
			return []string{"UMLS:C0243026"}, nil
		}
		return nil, nil
	})
	xrefs := OracleFunc(func(_ context.Context, curie string) ([]string, error) {
		return []string{"MESH:D018805", "ICD10:A41.9", "SNOMEDCT:91302008", "MESH:D018805"}, nil
	})
	r := &DiseaseResolver{Names: names, XRefs: xrefs}

	got, err := r.Resolve(context.Background(), "sepsis")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"UMLS:C0243026", "MeSH:D018805", "ICD-10:A41.9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got, err = r.Resolve(context.Background(), "nothing")
	if err != nil || got != nil {
		t.Errorf("Expected nil, nil; got %v, %v", got, err)
	}
}

func TestDiseaseResolverPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &DiseaseResolver{
		Names: OracleFunc(func(context.Context, string) ([]string, error) { return []string{"UMLS:C1"}, nil }),
		XRefs: OracleFunc(func(context.Context, string) ([]string, error) { return nil, boom }),
	}
	if _, err := r.Resolve(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
}
