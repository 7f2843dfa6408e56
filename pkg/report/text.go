package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

// WriteText prints one table per sprint and team to w. Colors follow
// color.NoColor.
func WriteText(w io.Writer, report analyzer.Report, teams []string) error {
	heading := color.New(color.FgCyan, color.Bold)

	for _, team := range teams {
		for _, sprint := range report.ForTeam(team) {
			_, err := fmt.Fprintf(w, "%s %s\n", heading.Sprintf("[%s]", team), sprintHeading(sprint))
			if err != nil {
				return fmt.Errorf("write text report: %w", err)
			}

			_, err = fmt.Fprintln(w, textTable(sprint))
			if err != nil {
				return fmt.Errorf("write text report: %w", err)
			}
		}
	}

	return nil
}

func textTable(sprint analyzer.SprintResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	if !color.NoColor {
		tw.Style().Color.Header = text.Colors{text.Bold, text.FgHiCyan}
	}

	header := table.Row{"Metric"}
	configs := make([]table.ColumnConfig, 0, len(sprint.Users))

	for i, ur := range sprint.Users {
		header = append(header, ur.User.Username)
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
	}

	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range metricRows(textContribution) {
		cells := table.Row{row.label}
		for _, ur := range sprint.Users {
			cells = append(cells, row.value(ur.Metrics))
		}

		tw.AppendRow(cells)
	}

	return tw.Render()
}

func textContribution(c analyzer.CommitMetrics) string {
	return fmt.Sprintf("%s (+%s/-%s)", count(c.ChangeLines), count(c.Insertions), count(c.Deletions))
}
