package report

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

const sprintDateLayout = "02.01.2006"

type metricRow struct {
	label string
	value func(m analyzer.UserMetrics) string
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func counter(get func(m analyzer.UserMetrics) int) func(analyzer.UserMetrics) string {
	return func(m analyzer.UserMetrics) string { return strconv.Itoa(get(m)) }
}

// metricRows are the per-user rows shared by the Markdown and text tables.
func metricRows(contribution func(c analyzer.CommitMetrics) string) []metricRow {
	return []metricRow{
		{"Contribution", func(m analyzer.UserMetrics) string { return contribution(m.Commits) }},
		{"Commits", counter(func(m analyzer.UserMetrics) int { return m.Commits.Commits })},
		{"PRs created", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.Created })},
		{"PRs merged", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.Merged })},
		{"PRs closed", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.Closed })},
		{"Discussions received", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.ReceivedDiscussions })},
		{"Assigned as reviewer", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.ApproverAssigned })},
		{"Reviews conducted", counter(func(m analyzer.UserMetrics) int { return m.PullRequests.ApproverConducted })},
		{"Discussions added", counter(func(m analyzer.UserMetrics) int {
			return m.PullRequests.ApproverAddedDiscussions
		})},
	}
}

func sprintHeading(s analyzer.SprintResult) string {
	return fmt.Sprintf("%s (%s - %s)",
		s.Sprint.Name, s.Sprint.Since.Format(sprintDateLayout), s.Sprint.Until.Format(sprintDateLayout))
}
