// Command integrate-kegg builds the first snapshot from the processed KEGG
// tables: entities, genomes, the KO hierarchy and the KEGG links.
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
	dataDir := flag.String("kegg_processed_data_dir", "", "path of the processed KEGG data directory")
	assignment := flag.String("gtdb_assignment", "", "path of the GTDB-Tk summary for the KEGG genomes (optional)")
	microbOnly := flag.Bool("microb_only", false, "keep only microbial genomes and their KO genes")
	ani := flag.Float64("ANI_threshold", 0.0, "ANI threshold to identify the same strain (default 0 for no filtering)")
	af := flag.Float64("AF_threshold", 0.0, "AF threshold to identify the same strain (default 0 for no filtering)")
	flag.Parse()

	cmdutil.Main("integrate-kegg", func(ctx context.Context) error {
		if err := snap.Check(false); err != nil {
			return err
		}
		if *dataDir == "" {
			return errors.New("--kegg_processed_data_dir is required")
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
		_, err = runner.Run(ctx, &integrate.KEGG{
			DataDir:        *dataDir,
			GTDBAssignment: *assignment,
			MicrobOnly:     *microbOnly,
			ANIThreshold:   *ani,
			AFThreshold:    *af,
		})
		return err
	})
}
