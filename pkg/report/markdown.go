package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

const avatarWidth = 120

// Markdown renders one document with a section per sprint. Table columns are
// the users of report, in catalog order.
func Markdown(report analyzer.Report) string {
	var doc strings.Builder

	doc.WriteString("# Sprints\n")

	for _, sprint := range report {
		fmt.Fprintf(&doc, "\n## %s\n\n", sprintHeading(sprint))
		doc.WriteString(markdownTable(sprint))
		doc.WriteString("\n")
	}

	return doc.String()
}

func markdownTable(sprint analyzer.SprintResult) string {
	tw := table.NewWriter()
	tw.Style().Format.Header = text.FormatDefault

	header := table.Row{""}
	usernames := table.Row{""}
	roles := table.Row{""}
	configs := make([]table.ColumnConfig, 0, len(sprint.Users))

	for i, ur := range sprint.Users {
		header = append(header, fmt.Sprintf("![](%s =%dx)", ur.User.AvatarURL, avatarWidth))
		usernames = append(usernames, "**"+ur.User.Username+"**")
		roles = append(roles, "*"+ur.User.Role+"*")
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter})
	}

	tw.AppendHeader(header)
	tw.AppendRow(usernames)
	tw.AppendRow(roles)
	tw.SetColumnConfigs(configs)

	for _, row := range metricRows(markdownContribution) {
		cells := table.Row{row.label}
		for _, ur := range sprint.Users {
			cells = append(cells, row.value(ur.Metrics))
		}

		tw.AppendRow(cells)
	}

	return tw.RenderMarkdown() + "\n"
}

func markdownContribution(c analyzer.CommitMetrics) string {
	return fmt.Sprintf("**%s** (*+ %s* / *- %s*)", count(c.ChangeLines), count(c.Insertions), count(c.Deletions))
}
