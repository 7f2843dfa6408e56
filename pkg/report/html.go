package report

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
)

const (
	chartWidth  = "100%"
	chartHeight = "420px"

	stackAuthored = "authored"
	stackReviewed = "reviewed"
)

type barSeries struct {
	name  string
	stack string
	value func(m analyzer.UserMetrics) int
}

var htmlSeries = []barSeries{
	{"PRs created", stackAuthored, func(m analyzer.UserMetrics) int { return m.PullRequests.Created }},
	{"PRs merged", stackAuthored, func(m analyzer.UserMetrics) int { return m.PullRequests.Merged }},
	{"PRs closed", stackAuthored, func(m analyzer.UserMetrics) int { return m.PullRequests.Closed }},
	{"Assigned as reviewer", stackReviewed, func(m analyzer.UserMetrics) int { return m.PullRequests.ApproverAssigned }},
	{"Reviews conducted", stackReviewed, func(m analyzer.UserMetrics) int { return m.PullRequests.ApproverConducted }},
	{"Commits", "", func(m analyzer.UserMetrics) int { return m.Commits.Commits }},
}

// HTML renders a page with one stacked bar chart per sprint.
func HTML(report analyzer.Report) ([]byte, error) {
	page := components.NewPage()
	page.PageTitle = "Sprints"

	for _, sprint := range report {
		page.AddCharts(sprintChart(sprint))
	}

	var buf bytes.Buffer

	err := page.Render(&buf)
	if err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}

	return buf.Bytes(), nil
}

func sprintChart(sprint analyzer.SprintResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: sprintHeading(sprint)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithGridOpts(opts.Grid{Top: "80", ContainLabel: opts.Bool(true)}),
	)

	labels := make([]string, len(sprint.Users))
	for i, ur := range sprint.Users {
		labels[i] = ur.User.Username
	}

	bar.SetXAxis(labels)

	for _, s := range htmlSeries {
		data := make([]opts.BarData, len(sprint.Users))
		for i, ur := range sprint.Users {
			data[i] = opts.BarData{Value: s.value(ur.Metrics)}
		}

		var seriesOpts []charts.SeriesOpts
		if s.stack != "" {
			seriesOpts = append(seriesOpts, charts.WithBarChartOpts(opts.BarChart{Stack: s.stack}))
		}

		bar.AddSeries(s.name, data, seriesOpts...)
	}

	return bar
}
