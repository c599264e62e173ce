package idmap

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchResolve looks up every distinct term concurrently with at most
// workers requests in flight. The first error cancels the remaining
// lookups and is returned.
func BatchResolve(ctx context.Context, oracle Oracle, terms []string, workers int) (map[string][]string, error) {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	results := make(map[string][]string, len(terms))
	seen := make(map[string]bool, len(terms))

	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ids, err := oracle.Lookup(gctx, term)
			if err != nil {
				return err
			}
			mu.Lock()
			results[term] = ids
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
