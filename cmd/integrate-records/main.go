// Command integrate-records replays node/edge record files onto a snapshot,
// or onto an empty graph when no existing snapshot is given.
package main

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/dd0wney/microbekg/pkg/cmdutil"
	"github.com/dd0wney/microbekg/pkg/integrate"
)

// pairList collects repeated --records nodes.tsv,edges.tsv flags.
type pairList []integrate.RecordFiles

func (p *pairList) String() string { return "" }

func (p *pairList) Set(v string) error {
	nodes, edges, _ := strings.Cut(v, ",")
	if nodes == "" && edges == "" {
		return errors.New("expected NODES.tsv,EDGES.tsv")
	}
	*p = append(*p, integrate.RecordFiles{Nodes: nodes, Edges: edges})
	return nil
}

func main() {
	var snap cmdutil.SnapshotFlags
	var files pairList
	snap.Register(flag.CommandLine)
	source := flag.String("source", "records", "name of the source, used in logs and metrics")
	flag.Var(&files, "records", "NODES.tsv,EDGES.tsv record files (repeatable; either side may be empty)")
	flag.Parse()

	cmdutil.Main("integrate-records", func(ctx context.Context) error {
		if err := snap.Check(false); err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("at least one --records is required")
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
		_, err = runner.Run(ctx, &integrate.Records{Source: *source, Files: files})
		return err
	})
}
