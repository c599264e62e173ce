// Command integrate-hierarchy adds the GTDB and NCBI microbial taxonomy to
// the KEGG snapshot, producing v2.
package main

import (
	"context"
	"errors"
	"flag"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/integrate"
	"github.com/dd0wney/microbekg/pkg/logging"
)

func main() {
	var snap cmdutil.SnapshotFlags
	snap.Register(flag.CommandLine)
	dataDir := flag.String("microbial_hierarchy_dir", "", "path of the directory with per-kingdom hierarchy tables")
	bacteria := flag.String("bacteria_metadata", "", "path of the GTDB metadata file for bacteria (e.g., bac120_metadata_r207.tsv)")
	archaea := flag.String("archaea_metadata", "", "path of the GTDB metadata file for archaea (e.g., ar53_metadata_r207.tsv)")
	flag.Parse()

	cmdutil.Main("integrate-hierarchy", func(ctx context.Context) error {
		if err := snap.Check(true); err != nil {
			return err
		}
		if *dataDir == "" || *bacteria == "" || *archaea == "" {
			return errors.New("--microbial_hierarchy_dir, --bacteria_metadata and --archaea_metadata are required")
		}

		env, err := cmdutil.Setup(snap.ConfigPath, snap.LogFile)
		if err != nil {
			return err
		}
		defer env.Close()

		runner, err := snap.Runner(ctx, env)
		if err != nil {
			return err
		}
		res, err := runner.Run(ctx, &integrate.Hierarchy{
			DataDir:          *dataDir,
			BacteriaMetadata: *bacteria,
			ArchaeaMetadata:  *archaea,
		})
		if err != nil {
			return err
		}
		env.Logger.Info("hierarchy integrated", logging.Int("nodes", res.Nodes), logging.Int("edges", res.Edges))
		return nil
	})
}
