package graphql

import (
	"strings"
	"testing"
)

func nodesCount(t *testing.T, config *LimitConfig, query string) int {
	t.Helper()
	schema := mustSchema(t, newTestGraph(t, 200), config)
	data := run(t, schema, query)
	return len(data["nodes"].([]any))
}

// TestDefaultLimitApplied tests that default limit is applied when no limit specified
func TestDefaultLimitApplied(t *testing.T) {
	got := nodesCount(t, &LimitConfig{DefaultLimit: 100, MaxLimit: 10000}, `{ nodes(type: "Microbe") { id } }`)
	if got != 100 {
		t.Errorf("Expected 100 nodes, got %d", got)
	}
}

func TestMaxLimitEnforced(t *testing.T) {
	got := nodesCount(t, &LimitConfig{DefaultLimit: 10, MaxLimit: 50}, `{ nodes(type: "Microbe", limit: 500) { id } }`)
	if got != 50 {
		t.Errorf("Expected 50 nodes, got %d", got)
	}
}

func TestExplicitLimitWithinMax(t *testing.T) {
	got := nodesCount(t, &LimitConfig{DefaultLimit: 10, MaxLimit: 500}, `{ nodes(type: "Microbe", limit: 150) { id } }`)
	if got != 150 {
		t.Errorf("Expected 150 nodes, got %d", got)
	}
}

func TestZeroLimitReturnsEmpty(t *testing.T) {
	got := nodesCount(t, &LimitConfig{DefaultLimit: 10, MaxLimit: 500}, `{ nodes(type: "Microbe", limit: 0) { id } }`)
	if got != 0 {
		t.Errorf("Expected 0 nodes, got %d", got)
	}
}

func TestNegativeLimitTreatedAsDefault(t *testing.T) {
	got := nodesCount(t, &LimitConfig{DefaultLimit: 20, MaxLimit: 500}, `{ nodes(type: "Microbe", limit: -5) { id } }`)
	if got != 20 {
		t.Errorf("Expected 20 nodes, got %d", got)
	}
}

func TestLimitConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *LimitConfig
		wantErr string
	}{
		{"nil", nil, "required"},
		{"zero max", &LimitConfig{DefaultLimit: 1, MaxLimit: 0}, "max limit"},
		{"default above max", &LimitConfig{DefaultLimit: 20, MaxLimit: 10}, "cannot exceed"},
		{"zero default", &LimitConfig{DefaultLimit: 0, MaxLimit: 10}, "default limit"},
		{"negative depth", &LimitConfig{DefaultLimit: 1, MaxLimit: 10, MaxDepth: -1}, "depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLimitConfig(tt.config)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
	if err := ValidateLimitConfig(DefaultLimitConfig()); err != nil {
		t.Errorf("DefaultLimitConfig() invalid: %v", err)
	}
}
