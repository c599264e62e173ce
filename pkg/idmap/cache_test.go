package idmap

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dd0wney/microbekg/pkg/metrics"
	dto "github.com/prometheus/client_model/go"
)

// runCacheTests exercises the Cache contract shared by every backend.
func runCacheTests(t *testing.T, c Cache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		if _, ok, err := c.Get(ctx, "absent"); ok || err != nil {
			t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		want := []string{"UMLS:C1", "MeSH:D1"}
		if err := c.Set(ctx, "umls|sepsis", want); err != nil {
			t.Fatal(err)
		}
		got, ok, err := c.Get(ctx, "umls|sepsis")
		if err != nil || !ok {
			t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("negative answer", func(t *testing.T) {
		if err := c.Set(ctx, "umls|nothing", nil); err != nil {
			t.Fatal(err)
		}
		got, ok, err := c.Get(ctx, "umls|nothing")
		if err != nil || !ok {
			t.Fatalf("Expected remembered miss, got ok=%v err=%v", ok, err)
		}
		if len(got) != 0 {
			t.Errorf("Expected empty answer, got %v", got)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "k", []string{"A:1"})
		_ = c.Set(ctx, "k", []string{"B:2"})
		got, _, _ := c.Get(ctx, "k")
		if len(got) != 1 || got[0] != "B:2" {
			t.Errorf("Expected [B:2], got %v", got)
		}
	})
}

func TestMemoryCache(t *testing.T) {
	runCacheTests(t, NewMemoryCache(0))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_ = c.Set(context.Background(), "k", []string{"A:1"})
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Fatal("Expected entry to expire")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry evicted, have %d", c.Len())
	}
}

func TestSQLiteCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.db")
	c, err := NewSQLiteCache(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	runCacheTests(t, c)
}

func TestSQLiteCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idmap.db")
	ctx := context.Background()

	c, err := NewSQLiteCache(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Set(ctx, "oxo|UMLS:C1", []string{"MeSH:D1"})
	c.Close()

	c, err = NewSQLiteCache(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	got, ok, err := c.Get(ctx, "oxo|UMLS:C1")
	if err != nil || !ok || got[0] != "MeSH:D1" {
		t.Fatalf("Expected persisted entry, got %v ok=%v err=%v", got, ok, err)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, _ := c.Get(ctx, "oxo|UMLS:C1"); ok {
		t.Error("Expected stale entry to be ignored")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisCache(context.Background(), addr, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	runCacheTests(t, c)
}

func TestCachedOracle(t *testing.T) {
	var calls atomic.Int32
	inner := OracleFunc(func(_ context.Context, term string) ([]string, error) {
		calls.Add(1)
		if term == "none" {
			return nil, nil
		}
		return []string{"UMLS:" + term}, nil
	})
	reg := metrics.NewRegistry()
	co := &CachedOracle{Oracle: inner, Cache: NewMemoryCache(0), Namespace: "umls", Metrics: reg}
	ctx := context.Background()

	for range 3 {
		got, err := co.Lookup(ctx, "C1")
		if err != nil || len(got) != 1 || got[0] != "UMLS:C1" {
			t.Fatalf("Unexpected lookup result %v, %v", got, err)
		}
		if _, err := co.Lookup(ctx, "none"); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 oracle calls, got %d", calls.Load())
	}

	var m dto.Metric
	_ = reg.OracleCacheTotal.WithLabelValues("hit").Write(&m)
	if m.Counter.GetValue() != 4 {
		t.Errorf("Expected 4 cache hits, got %v", m.Counter.GetValue())
	}
}
