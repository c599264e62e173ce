// Command neo4j-load pushes a snapshot into a running Neo4j instance and,
// with --indexes, creates the lookup indexes afterwards.
package main

import (
	"context"
	"errors"
	"flag"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/neo4jexport"
)

func main() {
	configPath := flag.String("config", "", "path of config.yml")
	nodes := flag.String("existing_KG_nodes", "", "path of the knowledge graph nodes")
	edges := flag.String("existing_KG_edges", "", "path of the knowledge graph edges")
	batchSize := flag.Int("batch_size", neo4jexport.DefaultBatchSize, "rows per UNWIND statement")
	indexes := flag.Bool("indexes", false, "create indexes and the id constraint after loading")
	indexesOnly := flag.Bool("indexes_only", false, "only create indexes; skip loading")
	flag.Parse()

	cmdutil.Main("neo4j-load", func(ctx context.Context) error {
		if !*indexesOnly && (*nodes == "" || *edges == "") {
			return errors.New("--existing_KG_nodes and --existing_KG_edges are required")
		}
		env, err := cmdutil.Setup(*configPath, "")
		if err != nil {
			return err
		}
		defer env.Close()

		client, err := neo4jexport.Connect(ctx, env.Config.Neo4j)
		if err != nil {
			return err
		}
		defer client.Close(context.WithoutCancel(ctx))

		if !*indexesOnly {
			g := kg.New(kg.Config{Logger: env.Logger, Metrics: env.Metrics})
			if err := g.LoadGraph("", *nodes, *edges); err != nil {
				return err
			}
			loader := &neo4jexport.Loader{Exec: client, BatchSize: *batchSize, Logger: env.Logger, Metrics: env.Metrics}
			if err := loader.Load(ctx, g); err != nil {
				return err
			}
		}

		if *indexes || *indexesOnly {
			n, err := neo4jexport.CreateIndexes(ctx, client)
			if err != nil {
				return err
			}
			env.Logger.Info("indexes created", logging.Count(n))
		}
		return env.Metrics.WriteTextfile(env.Config.MetricsFile)
	})
}
