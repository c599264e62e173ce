// Command kg-tui is a terminal browser for a snapshot: synonym lookup,
// node details, in/out edges and counts by type.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
)

func main() {
	nodes := flag.String("existing_KG_nodes", "", "path of the knowledge graph nodes")
	edges := flag.String("existing_KG_edges", "", "path of the knowledge graph edges")
	flag.Parse()

	if *nodes == "" || *edges == "" {
		fmt.Fprintln(os.Stderr, "kg-tui: --existing_KG_nodes and --existing_KG_edges are required")
		os.Exit(2)
	}

	// Logs would corrupt the alternate screen, so loading stays quiet.
	g := kg.New(kg.Config{Logger: logging.NewNopLogger()})
	if err := g.LoadGraph("", *nodes, *edges); err != nil {
		fmt.Fprintf(os.Stderr, "kg-tui: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(g), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "kg-tui: %v\n", err)
		os.Exit(1)
	}
}
