// Command kg-server serves a snapshot through GraphQL, with Prometheus
// metrics on /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/graphql"
	"github.com/dd0wney/microbekg/pkg/health"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path of config.yml")
	nodes := flag.String("existing_KG_nodes", "", "path of the knowledge graph nodes")
	edges := flag.String("existing_KG_edges", "", "path of the knowledge graph edges")
	addr := flag.String("addr", "", "listen address (default LISTEN_ADDR from config)")
	maxDepth := flag.Int("max_depth", graphql.DefaultLimitConfig().MaxDepth, "maximum GraphQL selection depth")
	memLimit := flag.Uint64("mem_limit", 0, "heap bytes above which /health reports degraded (0 disables)")
	flag.Parse()

	cmdutil.Main("kg-server", func(ctx context.Context) error {
		if *nodes == "" || *edges == "" {
			return errors.New("--existing_KG_nodes and --existing_KG_edges are required")
		}
		env, err := cmdutil.Setup(*configPath, "")
		if err != nil {
			return err
		}
		defer env.Close()

		g := kg.New(kg.Config{Logger: env.Logger, Metrics: env.Metrics})
		if err := g.LoadGraph("", *nodes, *edges); err != nil {
			return err
		}

		limits := graphql.DefaultLimitConfig()
		limits.MaxDepth = *maxDepth
		schema, err := graphql.GenerateSchema(g, limits)
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/graphql", graphql.NewGraphQLHandler(schema, limits.MaxDepth, env.Logger))
		mux.Handle("/metrics", env.Metrics.Handler())

		hc := health.NewChecker()
		hc.RegisterCheck("graph", health.GraphCheck(g))
		hc.RegisterCheck("snapshot", health.SnapshotCheck(*nodes, *edges))
		hc.RegisterCheck("memory", health.MemoryCheck(*memLimit))
		hc.RegisterReadinessCheck("graph", health.GraphCheck(g))
		hc.RegisterLivenessCheck("memory", health.MemoryCheck(0))
		mux.Handle("/health", hc.HTTPHandler())
		mux.Handle("/health/ready", hc.ReadinessHandler())
		mux.Handle("/health/live", hc.LivenessHandler())

		listen := *addr
		if listen == "" {
			listen = env.Config.ListenAddr
		}
		server := &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			env.Logger.Info("kg-server listening",
				logging.String("addr", listen),
				logging.Int("nodes", g.CountNodes()),
				logging.Int("edges", g.CountEdges()))
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		env.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}
