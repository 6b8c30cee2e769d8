package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
	"github.com/schoolmaps/overcrowding/pkg/selection"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listErrorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// exploreCommand creates the explore command, a terminal browser over the
// cluster and school selection.
func (c *CLI) exploreCommand() *cobra.Command {
	flags := inputFlags{}

	cmd := &cobra.Command{
		Use:   "explore [topology] [table]",
		Short: "Browse clusters and schools in the terminal",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.mergeOptions(cmd, flags.opts, args)
			return c.runExplore(cmd.Context(), opts, flags.noCache)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runExplore(ctx context.Context, opts pipeline.Options, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := startSpinner(ctx, "Loading dataset...")
	ds, err := runner.Dataset(ctx, opts)
	spinner.Stop()
	if err != nil {
		return err
	}

	m, err := newExploreModel(ds)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// =============================================================================
// exploreModel - Interactive cluster and school selection
// =============================================================================

// exploreModel is the bubbletea model behind explore. Every selection goes
// through a selection.Controller, so the terminal follows the same
// none → cluster → school transitions as the map viewer.
type exploreModel struct {
	ds   *pipeline.Dataset
	ctrl *selection.Controller

	clusters []heatmap.Stats
	schools  []heatmap.Stats

	cursor int
	offset int
	height int
	err    error
}

func newExploreModel(ds *pipeline.Dataset) (exploreModel, error) {
	clusters, err := clusterRanking(ds)
	if err != nil {
		return exploreModel{}, err
	}
	slices.SortFunc(clusters, func(a, b heatmap.Stats) int { return strings.Compare(a.Name, b.Name) })
	return exploreModel{
		ds:       ds,
		ctrl:     ds.Selection(),
		clusters: clusters,
		height:   15,
	}, nil
}

func (m exploreModel) Init() tea.Cmd {
	return nil
}

// items returns the rows of the current list: clusters at the None level,
// the active cluster's schools otherwise.
func (m exploreModel) items() []heatmap.Stats {
	if m.ctrl.State().Level == selection.None {
		return m.clusters
	}
	return m.schools
}

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		items := m.items()
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(items)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "enter":
			if len(items) == 0 {
				return m, nil
			}
			m = m.choose(items[m.cursor].ID)
		case "esc", "backspace", "left", "h":
			m = m.back()
		case "r":
			m.ctrl.Reset()
			m.schools, m.cursor, m.offset, m.err = nil, 0, 0, nil
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-14, 5)
	}
	return m, nil
}

// choose applies enter on the highlighted row.
func (m exploreModel) choose(id string) exploreModel {
	state := m.ctrl.State()
	var err error
	if state.Level == selection.None {
		state, err = m.ctrl.SelectCluster(id)
	} else {
		state, err = m.ctrl.SelectSchool(id)
	}
	m.err = err
	if err == nil && state.Level == selection.Cluster && m.schools == nil {
		m.schools = m.schoolStats(state.Cluster)
		m.cursor, m.offset = 0, 0
	}
	return m
}

// back leaves the school list, or deselects the school first.
func (m exploreModel) back() exploreModel {
	state := m.ctrl.State()
	if state.Level == selection.None {
		return m
	}
	// Selecting the active cluster again steps one level up.
	next, err := m.ctrl.SelectCluster(state.Cluster)
	m.err = err
	if next.Level == selection.None {
		m.schools = nil
		m.cursor, m.offset = m.clusterIndex(state.Cluster), 0
		if m.cursor >= m.height {
			m.offset = m.cursor - m.height + 1
		}
	}
	return m
}

func (m exploreModel) clusterIndex(id string) int {
	for i, c := range m.clusters {
		if c.ID == id {
			return i
		}
	}
	return 0
}

func (m exploreModel) schoolStats(cluster string) []heatmap.Stats {
	ids := m.ctrl.Schools(cluster)
	out := make([]heatmap.Stats, 0, len(ids))
	for _, id := range ids {
		if st, err := m.ds.Heatmap.SchoolStats(id); err == nil {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b heatmap.Stats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (m exploreModel) View() string {
	var b strings.Builder
	state := m.ctrl.State()

	title := fmt.Sprintf("Clusters %s", m.ds.Year)
	if state.Level != selection.None {
		c, _ := m.ds.Heatmap.ClusterStats(state.Cluster)
		title = "Clusters › " + c.Name
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  esc back  r reset  q quit"))
	b.WriteString("\n\n")

	b.WriteString(m.renderList())
	b.WriteString("\n\n")
	b.WriteString(m.renderDetail(state))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(listErrorStyle.Render(m.err.Error()))
	}
	return b.String()
}

func (m exploreModel) renderList() string {
	items := m.items()
	end := min(m.offset+m.height, len(items))

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		it := items[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, m.swatch(it.ID), it.Name, count(it.Enrollment), count(it.Capacity), percent(it)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	name := "Cluster"
	if m.ctrl.State().Level != selection.None {
		name = "School"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", name, "Enrollment", "Capacity", "Ratio").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle()
			if col >= 3 {
				base = base.Align(lipgloss.Right)
			}
			idx := m.offset + row
			if idx >= len(items) {
				return base
			}
			it := items[idx]
			if col == 1 {
				return base
			}
			switch {
			case idx == m.cursor:
				return base.Inherit(listSelectedStyle)
			case !it.Defined:
				return base.Foreground(colorDim)
			case it.Over && col == 5:
				return base.Foreground(colorRed)
			}
			return base
		})

	return t.Render() + "\n" + listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.cursor+1, len(items)), len(items)))
}

// swatch renders the heat color of a cluster or school.
func (m exploreModel) swatch(id string) string {
	color := m.ds.Heatmap.ClusterColor(id)
	if m.ctrl.State().Level != selection.None {
		color = m.ds.Heatmap.SchoolColor(id)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color.Hex())).Render("██")
}

func (m exploreModel) renderDetail(state selection.State) string {
	var lines []string
	sum := m.ds.Heatmap.Summary()
	lines = append(lines, fmt.Sprintf("County: %s enrolled, %s seats (%d%%)",
		count(sum.Enrollment), count(sum.Capacity), sum.Percent))

	if state.Level != selection.None {
		c, _ := m.ds.Heatmap.ClusterStats(state.Cluster)
		lines = append(lines, detailLine("Cluster", c))
	}
	if state.Level == selection.School {
		s, _ := m.ds.Heatmap.SchoolStats(state.School)
		lines = append(lines, detailLine("School", s))
	}
	return StyleDim.Render(strings.Join(lines, "\n"))
}

func detailLine(label string, s heatmap.Stats) string {
	if !s.Defined {
		return fmt.Sprintf("%s %s: no data", label, s.Name)
	}
	return fmt.Sprintf("%s %s: %s / %s (%d%%)", label, s.Name, count(s.Enrollment), count(s.Capacity), s.Percent)
}
