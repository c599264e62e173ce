package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
BUILD_KG_VARIABLES:
  NEO4J_BOLT: bolt://file-host:7687
  NEO4J_USERNAME: neo4j
  NEO4J_PASSWORD: from-file
  UMLS_API_KEY: file-key
  RETRY_DELAY: 5s
  WORKERS: 4
  CACHE:
    DRIVER: SQLite
    PATH: /tmp/oracle.db
  S3:
    BUCKET: kg-snapshots
    REGION: us-east-1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Setenv("neo4j_password", "")
	t.Setenv("NEO4J_PASSWORD", "")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Neo4j.Bolt != "bolt://file-host:7687" || cfg.Neo4j.Password != "from-file" {
		t.Errorf("unexpected neo4j config %+v", cfg.Neo4j)
	}
	if cfg.RetryDelay != 5*time.Second || cfg.Workers != 4 {
		t.Errorf("unexpected retry/workers %v %d", cfg.RetryDelay, cfg.Workers)
	}
	if cfg.Cache.Driver != CacheSQLite || cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.UMLSURL != DefaultUMLSURL {
		t.Errorf("default UMLS URL not applied, got %q", cfg.UMLSURL)
	}
	if !cfg.S3.Enabled() {
		t.Error("S3 should be enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestEnvironmentWins(t *testing.T) {
	t.Setenv("neo4j_bolt", "bolt://env-host:7687")
	t.Setenv("UMLS_API_KEY", "env-key")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Neo4j.Bolt != "bolt://env-host:7687" {
		t.Errorf("Expected env bolt, got %q", cfg.Neo4j.Bolt)
	}
	if cfg.UMLSAPIKey != "env-key" {
		t.Errorf("Expected env UMLS key, got %q", cfg.UMLSAPIKey)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != DefaultWorkers || cfg.Cache.Driver != CacheMemory {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "BUILD_KG_VARIABLES: [")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	cfg.Cache.Driver = CacheRedis
	cfg.OxOURL = "not a url"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	for _, want := range []string{"WORKERS", "CACHE.REDIS_ADDR", "OXO_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %s in %q", want, err)
		}
	}
}

func TestNeo4jRequire(t *testing.T) {
	err := Neo4jConfig{Username: "neo4j"}.Require()
	if !errors.Is(err, ErrMissingNeo4j) {
		t.Fatalf("Expected ErrMissingNeo4j, got %v", err)
	}
	if !strings.Contains(err.Error(), "neo4j_bolt, neo4j_password") {
		t.Errorf("Expected every missing parameter listed, got %q", err)
	}

	if err := (Neo4jConfig{Bolt: "http://x:7474", Username: "u", Password: "p"}).Require(); err == nil {
		t.Error("Expected error for non-bolt scheme")
	}
	if err := (Neo4jConfig{Bolt: "neo4j://localhost:7687", Username: "u", Password: "p"}).Require(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
