// Package config loads the pipeline configuration from config.yml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/microbekg/pkg/validation"
)

const (
	DefaultUMLSURL    = "https://uts-ws.nlm.nih.gov/rest/search/current"
	DefaultOxOURL     = "https://www.ebi.ac.uk/spot/oxo/api/search"
	DefaultRetryDelay = 30 * time.Second
	DefaultWorkers    = 8
	DefaultListenAddr = ":8080"
	DefaultCacheTTL   = 30 * 24 * time.Hour

	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// File mirrors the layout of config.yml.
type File struct {
	BuildKG BuildKG `yaml:"BUILD_KG_VARIABLES"`
}

// BuildKG holds every setting the integrators, exporters and servers read.
type BuildKG struct {
	Neo4j Neo4jConfig `yaml:",inline"`

	UMLSAPIKey string        `yaml:"UMLS_API_KEY"`
	UMLSURL    string        `yaml:"UMLS_URL"`
	OxOURL     string        `yaml:"OXO_URL"`
	RetryDelay time.Duration `yaml:"RETRY_DELAY"`
	Workers    int           `yaml:"WORKERS"`

	Cache CacheConfig `yaml:"CACHE"`
	S3    S3Config    `yaml:"S3"`

	LogFile     string `yaml:"LOG_FILE"`
	LogLevel    string `yaml:"LOG_LEVEL"`
	MetricsFile string `yaml:"METRICS_FILE"`
	ListenAddr  string `yaml:"LISTEN_ADDR"`
}

// Neo4jConfig holds graph database connection parameters.
type Neo4jConfig struct {
	Bolt     string `yaml:"NEO4J_BOLT"`
	Username string `yaml:"NEO4J_USERNAME"`
	Password string `yaml:"NEO4J_PASSWORD"`
	Database string `yaml:"NEO4J_DATABASE"`
}

// CacheConfig selects the id-mapping oracle cache.
type CacheConfig struct {
	Driver    string        `yaml:"DRIVER"`
	Path      string        `yaml:"PATH"`
	RedisAddr string        `yaml:"REDIS_ADDR"`
	TTL       time.Duration `yaml:"TTL"`
}

// S3Config enables publication of snapshots when Bucket is set.
type S3Config struct {
	Bucket   string `yaml:"BUCKET"`
	Prefix   string `yaml:"PREFIX"`
	Region   string `yaml:"REGION"`
	Endpoint string `yaml:"ENDPOINT"`

	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string `yaml:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"SECRET_ACCESS_KEY"`
}

// Enabled reports whether snapshot publication is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Default returns the built-in configuration.
func Default() *BuildKG {
	return &BuildKG{
		UMLSURL:    DefaultUMLSURL,
		OxOURL:     DefaultOxOURL,
		RetryDelay: DefaultRetryDelay,
		Workers:    DefaultWorkers,
		Cache:      CacheConfig{Driver: CacheMemory, TTL: DefaultCacheTTL},
		LogLevel:   "INFO",
		ListenAddr: DefaultListenAddr,
	}
}

// Load reads path (if non-empty), fills unset fields with defaults and
// applies environment overrides. Environment values win over the file.
func Load(path string) (*BuildKG, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var f File
		f.BuildKG = *cfg
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg = &f.BuildKG
	}
	cfg.applyEnv(os.Getenv)
	cfg.fillDefaults()
	return cfg, nil
}

func (c *BuildKG) applyEnv(getenv func(string) string) {
	lookup := func(names ...string) string {
		for _, n := range names {
			if v := getenv(n); v != "" {
				return v
			}
		}
		return ""
	}
	override := func(dst *string, names ...string) {
		if v := lookup(names...); v != "" {
			*dst = v
		}
	}

	override(&c.Neo4j.Bolt, "neo4j_bolt", "NEO4J_BOLT")
	override(&c.Neo4j.Username, "neo4j_username", "NEO4J_USERNAME")
	override(&c.Neo4j.Password, "neo4j_password", "NEO4J_PASSWORD")
	override(&c.Neo4j.Database, "neo4j_database", "NEO4J_DATABASE")
	override(&c.UMLSAPIKey, "UMLS_API_KEY", "umls_api_key")
	override(&c.LogLevel, "LOG_LEVEL")
	override(&c.Cache.RedisAddr, "REDIS_ADDR")
}

func (c *BuildKG) fillDefaults() {
	c.UMLSURL = validation.DefaultOr(c.UMLSURL, DefaultUMLSURL)
	c.OxOURL = validation.DefaultOr(c.OxOURL, DefaultOxOURL)
	c.RetryDelay = validation.DefaultOrDuration(c.RetryDelay, DefaultRetryDelay)
	c.ListenAddr = validation.DefaultOr(c.ListenAddr, DefaultListenAddr)
	c.Cache.Driver = strings.ToLower(validation.DefaultOr(c.Cache.Driver, CacheMemory))
	c.Cache.TTL = validation.DefaultOrDuration(c.Cache.TTL, DefaultCacheTTL)
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// Validate checks the settings every command depends on. Neo4j and UMLS
// credentials are checked separately by the commands that need them.
func (c *BuildKG) Validate() error {
	return validation.NewConfigValidator("BUILD_KG_VARIABLES").
		URL("UMLS_URL", c.UMLSURL, "http", "https").
		URL("OXO_URL", c.OxOURL, "http", "https").
		MinDuration("RETRY_DELAY", c.RetryDelay, 10*time.Millisecond).
		RangeInt("WORKERS", c.Workers, 1, 64).
		OneOf("LOG_LEVEL", strings.ToUpper(c.LogLevel), []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}).
		OneOf("CACHE.DRIVER", c.Cache.Driver, []string{CacheMemory, CacheSQLite, CacheRedis}).
		When(c.Cache.Driver == CacheSQLite, func(cv *validation.ConfigValidator) {
			cv.Required("CACHE.PATH", c.Cache.Path)
		}).
		When(c.Cache.Driver == CacheRedis, func(cv *validation.ConfigValidator) {
			cv.Required("CACHE.REDIS_ADDR", c.Cache.RedisAddr)
		}).
		When(c.S3.Enabled(), func(cv *validation.ConfigValidator) {
			cv.Required("S3.REGION", c.S3.Region)
			cv.Custom("S3.SECRET_ACCESS_KEY", func() error {
				if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
					return errors.New("ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together")
				}
				return nil
			})
		}).
		Validate()
}

// ErrMissingNeo4j is returned by Require when connection parameters are unset.
var ErrMissingNeo4j = errors.New("missing Neo4j parameters")

// Require fails listing every missing connection parameter.
func (n Neo4jConfig) Require() error {
	var missing []string
	if n.Bolt == "" {
		missing = append(missing, "neo4j_bolt")
	}
	if n.Username == "" {
		missing = append(missing, "neo4j_username")
	}
	if n.Password == "" {
		missing = append(missing, "neo4j_password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s. Set them as environment variables or in config.yml",
			ErrMissingNeo4j, strings.Join(missing, ", "))
	}
	return validation.NewConfigValidator("Neo4j").
		URL("NEO4J_BOLT", n.Bolt, "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc").
		Validate()
}
