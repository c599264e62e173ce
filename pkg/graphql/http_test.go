package graphql

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestHandler(t *testing.T) *GraphQLHandler {
	t.Helper()
	return NewGraphQLHandler(mustSchema(t, newTestGraph(t, 0), nil), 4, nil)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) GraphQLResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var response GraphQLResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return response
}

// TestGraphQLHTTPHandler tests the HTTP handler for GraphQL queries
func TestGraphQLHTTPHandler(t *testing.T) {
	handler := newTestHandler(t)

	body, _ := json.Marshal(GraphQLRequest{
		Query:     `query($id: ID!) { node(id: $id) { id names } }`,
		Variables: map[string]any{"id": "UMLS:C0243026"},
	})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	response := decodeResponse(t, rr)
	if len(response.Errors) > 0 {
		t.Fatalf("Response has errors: %v", response.Errors)
	}
	node := response.Data.(map[string]any)["node"].(map[string]any)
	if node["id"] != "Disease:1" {
		t.Errorf("Expected Disease:1, got %v", node["id"])
	}
}

func TestGraphQLHTTPGet(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ health }`), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	response := decodeResponse(t, rr)
	if response.Data.(map[string]any)["health"] != "ok" {
		t.Errorf("Unexpected response %v", response.Data)
	}
}

func TestGraphQLHTTPErrors(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"empty query", http.MethodPost, `{"query": ""}`, http.StatusBadRequest},
		{"method", http.MethodDelete, "", http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/graphql", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestGraphQLHTTPDepthLimit(t *testing.T) {
	handler := newTestHandler(t)
	body, _ := json.Marshal(GraphQLRequest{
		Query: `{ node(id: "NCBI:562") { outEdges { target { outEdges { target { id } } } } } }`,
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))

	response := decodeResponse(t, rr)
	if len(response.Errors) == 0 {
		t.Fatal("Expected depth error")
	}
}
