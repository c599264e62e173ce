// Package cmdutil holds the wiring shared by the command-line tools:
// configuration, logging, metrics, oracle caches and snapshot flags.
package cmdutil

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/microbekg/pkg/config"
	"github.com/dd0wney/microbekg/pkg/idmap"
	"github.com/dd0wney/microbekg/pkg/integrate"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
	"github.com/dd0wney/microbekg/pkg/publish"
)

// Env bundles what every command derives from config.yml.
type Env struct {
	Config  *config.BuildKG
	Logger  logging.Logger
	Metrics *metrics.Registry

	closers []io.Closer
	cache   idmap.Cache
}

// Setup loads and validates configPath, then opens the logger. A non-empty
// logFile overrides LOG_FILE.
func Setup(configPath, logFile string) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	logger, closer, err := logging.NewTeeLogger(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return &Env{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
		closers: []io.Closer{closer},
	}, nil
}

// Close releases caches and the log file, most recent first.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// NewCache opens the oracle cache selected by CACHE.DRIVER.
func (e *Env) NewCache(ctx context.Context) (idmap.Cache, error) {
	c := e.Config.Cache
	var (
		cache idmap.Cache
		err   error
	)
	switch c.Driver {
	case config.CacheSQLite:
		cache, err = idmap.NewSQLiteCache(c.Path, c.TTL)
	case config.CacheRedis:
		cache, err = idmap.NewRedisCache(ctx, c.RedisAddr, c.TTL)
	case config.CacheMemory, "":
		cache = idmap.NewMemoryCache(c.TTL)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, cache)
	e.Logger.Info("oracle cache ready", logging.String("driver", c.Driver))
	return cache, nil
}

func (e *Env) clientOptions(url string) idmap.ClientOptions {
	return idmap.ClientOptions{
		BaseURL:    url,
		RetryDelay: e.Config.RetryDelay,
		Logger:     e.Logger,
		Metrics:    e.Metrics,
	}
}

// cached wraps o in the oracle cache, opening it on first use so every
// oracle of one command shares it.
func (e *Env) cached(ctx context.Context, o idmap.Oracle, namespace string) (idmap.Oracle, error) {
	if e.cache == nil {
		cache, err := e.NewCache(ctx)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return &idmap.CachedOracle{Oracle: o, Cache: e.cache, Namespace: namespace, Logger: e.Logger, Metrics: e.Metrics}, nil
}

// DiseaseOracle builds the UMLS name lookup chained with OxO
// cross-references, both behind the configured cache.
func (e *Env) DiseaseOracle(ctx context.Context) (idmap.Oracle, error) {
	umls, err := idmap.NewUMLSClient(e.Config.UMLSAPIKey, e.clientOptions(e.Config.UMLSURL))
	if err != nil {
		return nil, err
	}
	names, err := e.cached(ctx, umls, "umls")
	if err != nil {
		return nil, err
	}
	xrefs, err := e.XRefOracle(ctx)
	if err != nil {
		return nil, err
	}
	return &idmap.DiseaseResolver{Names: names, XRefs: xrefs, Logger: e.Logger}, nil
}

// XRefOracle returns the cached OxO lookup of direct (distance 1)
// cross-references.
func (e *Env) XRefOracle(ctx context.Context) (idmap.Oracle, error) {
	return e.cached(ctx, idmap.NewOxOClient(1, nil, e.clientOptions(e.Config.OxOURL)), "oxo")
}

// TaxonOracle maps NCIt curies and microbe names to NCBI Taxonomy curies
// through UMLS.
func (e *Env) TaxonOracle(ctx context.Context) (idmap.Oracle, error) {
	umls, err := idmap.NewUMLSClient(e.Config.UMLSAPIKey, e.clientOptions(e.Config.UMLSURL))
	if err != nil {
		return nil, err
	}
	taxa, err := idmap.NewUMLSTaxonClient(e.Config.UMLSAPIKey, e.clientOptions(""))
	if err != nil {
		return nil, err
	}
	names, err := e.cached(ctx, umls, "umls")
	if err != nil {
		return nil, err
	}
	cachedTaxa, err := e.cached(ctx, taxa, "umls_taxon")
	if err != nil {
		return nil, err
	}
	return &idmap.TaxonResolver{Names: names, Taxa: cachedTaxa}, nil
}

// Publisher returns the S3 publisher when S3.BUCKET is set, else nil.
func (e *Env) Publisher(ctx context.Context) (integrate.Publisher, error) {
	if !e.Config.S3.Enabled() {
		return nil, nil
	}
	return publish.NewS3Publisher(ctx, e.Config.S3, e.Logger)
}

// SnapshotFlags are the flags shared by the integrators.
type SnapshotFlags struct {
	ConfigPath    string
	LogFile       string
	ExistingNodes string
	ExistingEdges string
	OutputDir     string
	Version       int
	Publish       bool
}

// Register adds the shared flags to fs.
func (f *SnapshotFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "path of config.yml")
	fs.StringVar(&f.LogFile, "log_file", "", "append logs to this file as well as stdout")
	fs.StringVar(&f.ExistingNodes, "existing_KG_nodes", "", "path of the existing knowledge graph nodes")
	fs.StringVar(&f.ExistingEdges, "existing_KG_edges", "", "path of the existing knowledge graph edges")
	fs.StringVar(&f.OutputDir, "output_dir", "", "path of the output directory")
	fs.IntVar(&f.Version, "version", 0, "snapshot version to write (default: the pass's own)")
	fs.BoolVar(&f.Publish, "publish", false, "upload the snapshot to S3 when configured")
}

// Check reports missing required flags.
func (f *SnapshotFlags) Check(requireExisting bool) error {
	if f.OutputDir == "" {
		return errors.New("--output_dir is required")
	}
	if requireExisting && (f.ExistingNodes == "" || f.ExistingEdges == "") {
		return errors.New("--existing_KG_nodes and --existing_KG_edges are required")
	}
	return nil
}

// Runner builds the pass runner for these flags.
func (f *SnapshotFlags) Runner(ctx context.Context, env *Env) (*integrate.Runner, error) {
	r := &integrate.Runner{
		ExistingNodes: f.ExistingNodes,
		ExistingEdges: f.ExistingEdges,
		OutputDir:     f.OutputDir,
		Version:       f.Version,
		Logger:        env.Logger,
		Metrics:       env.Metrics,
		MetricsFile:   env.Config.MetricsFile,
	}
	if f.Publish {
		pub, err := env.Publisher(ctx)
		if err != nil {
			return nil, err
		}
		if pub == nil {
			env.Logger.Warn("--publish given but S3.BUCKET is not configured")
		}
		r.Publisher = pub
	}
	return r, nil
}

// Main runs fn with a context cancelled on SIGINT or SIGTERM and exits
// non-zero when it fails.
func Main(name string, fn func(ctx context.Context) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fn(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}
