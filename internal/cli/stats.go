package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

const defaultTop = 10

// statsCommand creates the stats command that prints county statistics.
func (c *CLI) statsCommand() *cobra.Command {
	flags := inputFlags{}
	var top int

	cmd := &cobra.Command{
		Use:   "stats [topology] [table]",
		Short: "Print county statistics and the most crowded clusters",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.mergeOptions(cmd, flags.opts, args)
			return c.runStats(cmd.Context(), opts, flags.noCache, top)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&top, "top", "n", defaultTop, "number of clusters to list (0 for all)")
	return cmd
}

func (c *CLI) runStats(ctx context.Context, opts pipeline.Options, noCache bool, top int) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	ds, err := runner.Dataset(ctx, opts)
	if err != nil {
		return err
	}
	prog.done(printer.Sprintf("Loaded %d clusters and %d schools", len(ds.Clusters), len(ds.Schools)))

	rows, err := clusterRanking(ds)
	if err != nil {
		return err
	}
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	sum := ds.Heatmap.Summary()
	fmt.Println(StyleTitle.Render(fmt.Sprintf("County %s", ds.Year)))
	printKeyValue("Enrollment", count(sum.Enrollment))
	printKeyValue("Capacity", count(sum.Capacity))
	printKeyValue("Utilization", fmt.Sprintf("%d%%", sum.Percent))
	printKeyValue("Over", fmt.Sprintf("%d of %d schools (%d%%)", sum.OverEnrolled, sum.Schools, sum.OverPercent))
	printNewline()
	fmt.Println(renderClusterTable(rows))
	return nil
}

// clusterRanking returns cluster statistics ordered by ratio, highest
// first. Clusters without a defined ratio sort last by name.
func clusterRanking(ds *pipeline.Dataset) ([]heatmap.Stats, error) {
	rows := make([]heatmap.Stats, 0, len(ds.Clusters))
	for _, id := range ds.ClusterIDs() {
		st, err := ds.Heatmap.ClusterStats(id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, st)
	}
	slices.SortStableFunc(rows, func(a, b heatmap.Stats) int {
		if a.Defined != b.Defined {
			if a.Defined {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Ratio, a.Ratio); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows, nil
}

func renderClusterTable(rows []heatmap.Stats) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Name, count(r.Enrollment), count(r.Capacity), percent(r)}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Cluster", "Enrollment", "Capacity", "Ratio").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			style := cell
			if col > 0 {
				style = style.Align(lipgloss.Right)
			}
			r := rows[row]
			switch {
			case !r.Defined:
				return style.Foreground(colorDim)
			case r.Over && col == 3:
				return style.Inherit(StyleOver)
			}
			return style
		}).
		Render()
}
