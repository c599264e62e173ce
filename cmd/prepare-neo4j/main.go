// Command prepare-neo4j converts a snapshot into neo4j-admin bulk import
// files.
package main

import (
	"context"
	"errors"
	"flag"
	"path/filepath"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/neo4jexport"
)

func main() {
	configPath := flag.String("config", "", "path of config.yml")
	nodes := flag.String("existing_KG_nodes", "", "path of the knowledge graph nodes")
	edges := flag.String("existing_KG_edges", "", "path of the knowledge graph edges")
	outputDir := flag.String("output_dir", "", "path of the output directory")
	flag.Parse()

	cmdutil.Main("prepare-neo4j", func(ctx context.Context) error {
		if *nodes == "" || *edges == "" || *outputDir == "" {
			return errors.New("--existing_KG_nodes, --existing_KG_edges and --output_dir are required")
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
		if err := neo4jexport.WriteBulk(*outputDir, g, neo4jexport.Options{Logger: env.Logger, Metrics: env.Metrics}); err != nil {
			return err
		}
		env.Logger.Info("neo4j import files written",
			logging.Path(*outputDir),
			logging.String("nodes", filepath.Join(*outputDir, neo4jexport.NodesFile)),
			logging.String("edges", filepath.Join(*outputDir, neo4jexport.EdgesFile)))
		return env.Metrics.WriteTextfile(env.Config.MetricsFile)
	})
}
