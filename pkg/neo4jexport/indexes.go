package neo4jexport

import (
	"context"
	"fmt"
	"sort"
)

// IndexedProperties are indexed on every node label.
var IndexedProperties = []string{
	"node_id", "node_type", "all_names", "description",
	"knowledge_source", "link", "synonyms", "is_pathogen",
}

// NodeLabels returns the distinct first labels present in the database.
func NodeLabels(ctx context.Context, exec Executor) ([]string, error) {
	rows, err := exec.Read(ctx, "MATCH (n) RETURN distinct labels(n) AS labels", nil)
	if err != nil {
		return nil, fmt.Errorf("neo4jexport: list labels: %w", err)
	}
	seen := map[string]bool{}
	var labels []string
	for _, row := range rows {
		list, _ := row["labels"].([]any)
		if len(list) == 0 {
			continue
		}
		l, ok := list[0].(string)
		if !ok || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}

// CreateIndexes creates one index per property in IndexedProperties for
// every label, and the uniqueness constraint on Base.id when a Base label
// exists. Statements are idempotent.
func CreateIndexes(ctx context.Context, exec Executor) (int, error) {
	labels, err := NodeLabels(ctx, exec)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, label := range labels {
		for _, prop := range IndexedProperties {
			q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", quoteName(label), prop)
			if err := exec.Write(ctx, q, nil); err != nil {
				return created, fmt.Errorf("neo4jexport: index %s.%s: %w", label, prop, err)
			}
			created++
		}
		if label == "Base" {
			q := "CREATE CONSTRAINT IF NOT EXISTS FOR (n:Base) REQUIRE n.id IS UNIQUE"
			if err := exec.Write(ctx, q, nil); err != nil {
				return created, fmt.Errorf("neo4jexport: base constraint: %w", err)
			}
			created++
		}
	}
	return created, nil
}
