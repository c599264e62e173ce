// Command integrate-microphenodb links the microbes of an existing snapshot
// to the diseases MicroPhenoDB associates them with.
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
	dataDir := flag.String("data_dir", "", "path of the MicroPhenoDB data directory")
	lineage := flag.String("lineage", "", "path of the taxonkit lineage table (TaxID, Rank, Lineage)")
	flag.Parse()

	cmdutil.Main("integrate-microphenodb", func(ctx context.Context) error {
		if err := snap.Check(true); err != nil {
			return err
		}
		if *dataDir == "" || *lineage == "" {
			return errors.New("--data_dir and --lineage are required")
		}

		env, err := cmdutil.Setup(snap.ConfigPath, snap.LogFile)
		if err != nil {
			return err
		}
		defer env.Close()

		xrefs, err := env.XRefOracle(ctx)
		if err != nil {
			return err
		}
		diseases, err := env.DiseaseOracle(ctx)
		if err != nil {
			return err
		}
		taxa, err := env.TaxonOracle(ctx)
		if err != nil {
			return err
		}
		runner, err := snap.Runner(ctx, env)
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx, &integrate.MicroPhenoDB{
			DataDir:  *dataDir,
			Lineage:  *lineage,
			XRefs:    xrefs,
			Diseases: diseases,
			Taxa:     taxa,
			Workers:  env.Config.Workers,
		})
		return err
	})
}
