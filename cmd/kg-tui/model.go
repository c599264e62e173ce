package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/microbekg/pkg/kg"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	lookupView
	nodeView
	edgesView
)

var viewNames = []string{"Dashboard", "Lookup", "Node", "Edges"}

const searchLimit = 200

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Search   key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Search, k.Enter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Up, k.Down, k.Search},
		{k.Quit},
	}
}

// Graph is the read surface the browser needs.
type Graph interface {
	FindNodeBySynonym(synonym string) (string, bool)
	GetNodeByID(id string) (*kg.Node, bool)
	FindAllOutEdges(id string) []*kg.Edge
	FindAllInEdges(id string) []*kg.Edge
	SearchNodes(query string, limit int) []*kg.Node
	CountNodes() int
	CountEdges() int
	CountByType() map[kg.NodeType]int
}

type model struct {
	graph       Graph
	currentView view
	width       int
	height      int

	input   textinput.Model
	results table.Model
	edges   table.Model
	help    help.Model

	selected *kg.Node
	// edge table rows map to the node on the other end
	neighbours []string

	message string
	err     error
}

func initialModel(g Graph) model {
	ti := textinput.New()
	ti.Placeholder = "synonym, id or name (e.g. NCBI:562)"
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	results := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 16},
			{Title: "Type", Width: 10},
			{Title: "Name", Width: 40},
		}),
		table.WithHeight(12),
	)

	edges := table.New(
		table.WithColumns([]table.Column{
			{Title: "Dir", Width: 4},
			{Title: "Predicate", Width: 34},
			{Title: "Node", Width: 16},
			{Title: "Sources", Width: 24},
		}),
		table.WithHeight(14),
	)

	return model{
		graph:       g,
		currentView: dashboardView,
		input:       ti,
		results:     results,
		edges:       edges,
		help:        help.New(),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab):
			m.switchView((m.currentView + 1) % view(len(viewNames)))
			return m, nil
		case key.Matches(msg, keys.ShiftTab):
			m.switchView((m.currentView + view(len(viewNames)) - 1) % view(len(viewNames)))
			return m, nil
		}

		switch m.currentView {
		case lookupView:
			return m.updateLookup(msg)
		case edgesView:
			return m.updateEdges(msg)
		default:
			if key.Matches(msg, keys.Search) {
				m.switchView(lookupView)
				return m, nil
			}
		}
	}
	return m, nil
}

func (m *model) switchView(v view) {
	m.currentView = v
	if v == lookupView && len(m.results.Rows()) == 0 {
		m.input.Focus()
		m.results.Blur()
	} else {
		m.input.Blur()
	}
	if v == edgesView {
		m.edges.Focus()
	} else {
		m.edges.Blur()
	}
}

func (m model) updateLookup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		if key.Matches(msg, keys.Enter) {
			m.lookup(strings.TrimSpace(m.input.Value()))
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Search):
		m.input.Focus()
		m.results.Blur()
		return m, textinput.Blink
	case key.Matches(msg, keys.Enter):
		if row := m.results.SelectedRow(); row != nil {
			m.open(row[0])
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m model) updateEdges(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Search):
		m.switchView(lookupView)
		m.input.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Enter):
		if i := m.edges.Cursor(); i >= 0 && i < len(m.neighbours) {
			m.open(m.neighbours[i])
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.edges, cmd = m.edges.Update(msg)
	return m, cmd
}

// lookup resolves q as a synonym or canonical id first and falls back to a
// substring search.
func (m *model) lookup(q string) {
	m.err = nil
	m.message = ""
	if q == "" {
		return
	}
	if id, ok := m.graph.FindNodeBySynonym(q); ok {
		m.open(id)
		return
	}
	if _, ok := m.graph.GetNodeByID(q); ok {
		m.open(q)
		return
	}

	found := m.graph.SearchNodes(q, searchLimit)
	if len(found) == 0 {
		m.err = fmt.Errorf("no node matches %q", q)
		m.results.SetRows(nil)
		return
	}
	rows := make([]table.Row, len(found))
	for i, n := range found {
		rows[i] = table.Row{n.ID, string(n.Type), firstOr(n.Names.Slice(), "")}
	}
	m.results.SetRows(rows)
	m.results.SetCursor(0)
	m.input.Blur()
	m.results.Focus()
	m.message = fmt.Sprintf("%d matches", len(found))
}

// open selects the node with canonical id and loads its edges.
func (m *model) open(id string) {
	n, ok := m.graph.GetNodeByID(id)
	if !ok {
		m.err = fmt.Errorf("node %s not found", id)
		return
	}
	m.err = nil
	m.selected = n

	out := m.graph.FindAllOutEdges(id)
	in := m.graph.FindAllInEdges(id)
	rows := make([]table.Row, 0, len(out)+len(in))
	m.neighbours = m.neighbours[:0]
	for _, e := range out {
		rows = append(rows, table.Row{"out", e.Predicate, e.Target, strings.Join(e.KnowledgeSources.Slice(), ",")})
		m.neighbours = append(m.neighbours, e.Target)
	}
	for _, e := range in {
		rows = append(rows, table.Row{"in", e.Predicate, e.Source, strings.Join(e.KnowledgeSources.Slice(), ",")})
		m.neighbours = append(m.neighbours, e.Source)
	}
	m.edges.SetRows(rows)
	m.edges.SetCursor(0)
	m.message = fmt.Sprintf("%s: %d out, %d in", id, len(out), len(in))
	m.switchView(nodeView)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🧫 Microbe KG Browser"))
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	var content string
	switch m.currentView {
	case dashboardView:
		content = m.renderDashboard()
	case lookupView:
		content = m.renderLookup()
	case nodeView:
		content = m.renderNode()
	case edgesView:
		content = m.renderEdges()
	}
	b.WriteString(contentStyle.Render(content))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(contentStyle.Render(errorStyle.Render("Error: " + m.err.Error())))
		b.WriteString("\n")
	} else if m.message != "" {
		b.WriteString(contentStyle.Render(successStyle.Render(m.message)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(keys)))
	return b.String()
}

func (m model) renderTabs() string {
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.currentView {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderDashboard() string {
	totals := statsBoxStyle.Render(fmt.Sprintf(
		"%s\n\nNodes: %d\nEdges: %d",
		headerStyle.Render("Graph"),
		m.graph.CountNodes(),
		m.graph.CountEdges(),
	))

	byType := m.graph.CountByType()
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	var lines strings.Builder
	for _, t := range types {
		fmt.Fprintf(&lines, "%-12s %d\n", t, byType[kg.NodeType(t)])
	}
	counts := statsBoxStyle.Render(headerStyle.Render("By type") + "\n\n" + strings.TrimRight(lines.String(), "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, totals, counts)
}

func (m model) renderLookup() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Lookup"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if len(m.results.Rows()) > 0 {
		b.WriteString(m.results.View())
	}
	return b.String()
}

func (m model) renderNode() string {
	n := m.selected
	if n == nil {
		return "No node selected. Press / to search."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(n.ID))
	b.WriteString("\n\n")
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	field("Type:", fmt.Sprintf("%s (%s)", n.Type, n.Type.Category()))
	field("Names:", strings.Join(n.Names.Slice(), "; "))
	field("Synonyms:", strings.Join(n.Synonyms.Slice(), ", "))
	field("Sources:", strings.Join(n.KnowledgeSources.Slice(), ", "))
	field("Links:", strings.Join(n.Links.Slice(), " "))
	if n.IsPathogen {
		field("Pathogen:", "yes")
	}
	for _, a := range n.Description.Pairs() {
		field(a.Key+":", a.Value)
	}
	return b.String()
}

func (m model) renderEdges() string {
	if m.selected == nil {
		return "No node selected. Press / to search."
	}
	if len(m.edges.Rows()) == 0 {
		return headerStyle.Render(m.selected.ID) + "\n\nNo edges."
	}
	return headerStyle.Render(m.selected.ID) + "\n\n" + m.edges.View()
}

func firstOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}
