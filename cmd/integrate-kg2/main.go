// Command integrate-kg2 adds RTX-KG2 diseases, phenotypes and KEGG-linked
// chemistry to an existing snapshot.
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
	dataDir := flag.String("kg2_dir", "", "path of the RTX-KG2 directory with nodes_c*.tsv and edges_c*.tsv")
	flag.Parse()

	cmdutil.Main("integrate-kg2", func(ctx context.Context) error {
		if err := snap.Check(true); err != nil {
			return err
		}
		if *dataDir == "" {
			return errors.New("--kg2_dir is required")
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
		_, err = runner.Run(ctx, &integrate.KG2{DataDir: *dataDir})
		return err
	})
}
