package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsRead     = "sprintstats.commits.read"
	metricPullsFetched    = "sprintstats.pulls.fetched"
	metricReviewsFetched  = "sprintstats.reviews.fetched"
	metricFetchDuration   = "sprintstats.fetch.duration.seconds"
	metricFetchErrors     = "sprintstats.fetch.errors"
	metricAnalyzeDuration = "sprintstats.analyze.duration.seconds"

	attrRepository = "repository"
	attrStage      = "stage"
	attrStatus     = "status"

	// StageHistory labels the local git half of a repository fetch.
	StageHistory = "history"
	// StagePulls labels the remote pull request half of a repository fetch.
	StagePulls = "pulls"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s: a warm pull takes well under
// a second while a first clone of a large repository takes minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// RunMetrics holds the instruments recorded during one report run.
type RunMetrics struct {
	commitsRead     metric.Int64Counter
	pullsFetched    metric.Int64Counter
	reviewsFetched  metric.Int64Counter
	fetchErrors     metric.Int64Counter
	fetchDuration   metric.Float64Histogram
	analyzeDuration metric.Float64Histogram
}

// NewRunMetrics creates the run instruments from mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsRead,
		metric.WithDescription("Commits read from local history"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsRead, err)
	}

	pulls, err := mt.Int64Counter(metricPullsFetched,
		metric.WithDescription("Pull requests kept from the remote"),
		metric.WithUnit("{pull}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPullsFetched, err)
	}

	reviews, err := mt.Int64Counter(metricReviewsFetched,
		metric.WithDescription("Reviews fetched for kept pull requests"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReviewsFetched, err)
	}

	fetchErrors, err := mt.Int64Counter(metricFetchErrors,
		metric.WithDescription("Failed repository fetch stages"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFetchErrors, err)
	}

	fetchDuration, err := mt.Float64Histogram(metricFetchDuration,
		metric.WithDescription("Duration of a repository fetch stage in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFetchDuration, err)
	}

	analyzeDuration, err := mt.Float64Histogram(metricAnalyzeDuration,
		metric.WithDescription("Duration of the sprint analysis in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAnalyzeDuration, err)
	}

	return &RunMetrics{
		commitsRead:     commits,
		pullsFetched:    pulls,
		reviewsFetched:  reviews,
		fetchErrors:     fetchErrors,
		fetchDuration:   fetchDuration,
		analyzeDuration: analyzeDuration,
	}, nil
}

// RecordHistory records the commits read from repository.
func (rm *RunMetrics) RecordHistory(ctx context.Context, repository string, commits int) {
	if rm == nil {
		return
	}

	rm.commitsRead.Add(ctx, int64(commits), metric.WithAttributes(attribute.String(attrRepository, repository)))
}

// RecordPulls records the pull requests and reviews kept for repository.
func (rm *RunMetrics) RecordPulls(ctx context.Context, repository string, pulls, reviews int) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrRepository, repository))

	rm.pullsFetched.Add(ctx, int64(pulls), attrs)
	rm.reviewsFetched.Add(ctx, int64(reviews), attrs)
}

// RecordFetch records the duration and outcome of one fetch stage.
func (rm *RunMetrics) RecordFetch(ctx context.Context, repository, stage string, duration time.Duration, err error) {
	if rm == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}

	rm.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrRepository, repository),
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	))

	if err != nil {
		rm.fetchErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrRepository, repository),
			attribute.String(attrStage, stage),
		))
	}
}

// RecordAnalyze records how long the analysis took.
func (rm *RunMetrics) RecordAnalyze(ctx context.Context, duration time.Duration) {
	if rm == nil {
		return
	}

	rm.analyzeDuration.Record(ctx, duration.Seconds())
}
