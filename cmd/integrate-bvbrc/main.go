// Command integrate-bvbrc attaches BV-BRC pathogen genomes and their
// diseases to an existing snapshot.
package main

import (
	"context"
	"errors"
	"flag"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/integrate"
)

func main() {
	var snap cmdutil.SnapshotFlags
	snap.Register(flag.CommandLine)
	dataDir := flag.String("data_dir", "", "path of the BV-BRC data directory")
	assignment := flag.String("gtdb_assignment", "", "path of the GTDB-Tk summary for the BV-BRC genomes")
	lineage := flag.String("lineage", "", "path of the taxonkit lineage table (TaxID, Rank, Lineage)")
	ani := flag.Float64("ANI_threshold", 0.0, "ANI threshold to identify the same strain (default 0 for no filtering)")
	af := flag.Float64("AF_threshold", 0.0, "AF threshold to identify the same strain (default 0 for no filtering)")
	flag.Parse()

	cmdutil.Main("integrate-bvbrc", func(ctx context.Context) error {
		if err := snap.Check(true); err != nil {
			return err
		}
		if *dataDir == "" || *assignment == "" || *lineage == "" {
			return errors.New("--data_dir, --gtdb_assignment and --lineage are required")
		}

		env, err := cmdutil.Setup(snap.ConfigPath, snap.LogFile)
		if err != nil {
			return err
		}
		defer env.Close()

		diseases, err := env.DiseaseOracle(ctx)
		if err != nil {
			return err
		}
		runner, err := snap.Runner(ctx, env)
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx, &integrate.BVBRC{
			DataDir:        *dataDir,
			GTDBAssignment: *assignment,
			Lineage:        *lineage,
			ANIThreshold:   *ani,
			AFThreshold:    *af,
			Diseases:       diseases,
			Workers:        env.Config.Workers,
		})
		return err
	})
}
