// Package fetch runs the source adapters for every tracked repository and
// collects their records into an event store.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sprintstats/pkg/gitlib"
	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
	"github.com/Sumatoshi-tech/sprintstats/pkg/observability"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/gitea"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/history"
	"github.com/Sumatoshi-tech/sprintstats/pkg/store"
)

const (
	spanRepository = "sprintstats.fetch.repository"
	spanHistory    = "sprintstats.fetch.history"
	spanPulls      = "sprintstats.fetch.pulls"
)

// HistorySource syncs and reads the commit history of a repository.
type HistorySource interface {
	Fetch(ctx context.Context, repo model.Repository, since time.Time, progress gitlib.ProgressFunc) (history.Result, error)
}

// PullSource lists the pull requests of a repository with their reviews.
type PullSource interface {
	FetchPullRequests(
		ctx context.Context, repo model.Repository, since time.Time, onPage gitea.PageFunc,
	) ([]model.PullRequest, error)
}

// Runner fetches repositories one at a time. Within a repository the history
// and pull request sources run concurrently.
type Runner struct {
	history  HistorySource
	pulls    PullSource
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.RunMetrics
	progress Progress
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithMetrics sets the run metrics to record into.
func WithMetrics(metrics *observability.RunMetrics) Option {
	return func(r *Runner) { r.metrics = metrics }
}

// WithProgress sets the progress display.
func WithProgress(progress Progress) Option {
	return func(r *Runner) { r.progress = progress }
}

// NewRunner creates a runner over the two sources.
func NewRunner(historySource HistorySource, pullSource PullSource, opts ...Option) *Runner {
	r := &Runner{
		history:  historySource,
		pulls:    pullSource,
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer("sprintstats"),
		progress: NopProgress{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run fetches every repository and returns the populated store. The first
// failure aborts the run and no store is returned.
func (r *Runner) Run(ctx context.Context, repos []model.Repository, since time.Time) (*store.Store, error) {
	collector := store.NewCollector()

	for _, repo := range repos {
		err := r.fetchRepository(ctx, collector, repo, since)
		if err != nil {
			collector.Close()

			return nil, err
		}
	}

	s := collector.Close()

	for _, repo := range s.Repositories() {
		r.logger.DebugContext(ctx, "repository stored", "repository", repo.Name,
			"commits", len(s.RepositoryCommits(repo)), "pull_requests", len(s.RepositoryPullRequests(repo)))
	}

	commits, pulls := s.Counts()
	r.logger.InfoContext(ctx, "fetch finished", "repositories", len(repos), "commits", commits, "pull_requests", pulls)

	return s, nil
}

func (r *Runner) fetchRepository(
	ctx context.Context, collector *store.Collector, repo model.Repository, since time.Time,
) (err error) {
	ctx, span := r.tracer.Start(ctx, spanRepository, trace.WithAttributes(
		attribute.String("repository", repo.Name),
		attribute.String("owner", repo.Owner),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	r.logger.InfoContext(ctx, "fetching repository", "repository", repo.Name, "since", since.Format(time.RFC3339))
	r.progress.Start(repo)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		commits, histErr := r.fetchHistory(gctx, repo, since)
		if histErr != nil {
			return histErr
		}

		collector.Send(store.Batch{Repository: repo, Commits: commits})

		return nil
	})

	g.Go(func() error {
		pulls, pullErr := r.fetchPulls(gctx, repo, since)
		if pullErr != nil {
			return pullErr
		}

		collector.Send(store.Batch{Repository: repo, PullRequests: pulls})

		return nil
	})

	err = g.Wait()
	r.progress.Finish(repo, err)

	return err
}

func (r *Runner) fetchHistory(ctx context.Context, repo model.Repository, since time.Time) ([]model.Commit, error) {
	ctx, span := r.tracer.Start(ctx, spanHistory)
	defer span.End()

	started := time.Now()

	result, err := r.history.Fetch(ctx, repo, since, func(percent int) {
		r.progress.Transfer(repo, percent)
	})

	r.metrics.RecordFetch(ctx, repo.Name, observability.StageHistory, time.Since(started), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("fetch history of %s: %w", repo.Name, err)
	}

	span.SetAttributes(
		attribute.Int("commits", len(result.Commits)),
		attribute.String("action", string(result.Action)),
		attribute.String("head", result.Head),
	)
	r.metrics.RecordHistory(ctx, repo.Name, len(result.Commits))

	if result.Commits == nil {
		return []model.Commit{}, nil
	}

	return result.Commits, nil
}

func (r *Runner) fetchPulls(ctx context.Context, repo model.Repository, since time.Time) ([]model.PullRequest, error) {
	ctx, span := r.tracer.Start(ctx, spanPulls)
	defer span.End()

	started := time.Now()

	pulls, err := r.pulls.FetchPullRequests(ctx, repo, since, func(page int) {
		r.progress.Page(repo, page)
	})

	r.metrics.RecordFetch(ctx, repo.Name, observability.StagePulls, time.Since(started), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("fetch pull requests of %s: %w", repo.Name, err)
	}

	reviews := 0
	for i := range pulls {
		reviews += len(pulls[i].Reviews)
	}

	span.SetAttributes(attribute.Int("pull_requests", len(pulls)), attribute.Int("reviews", reviews))
	r.metrics.RecordPulls(ctx, repo.Name, len(pulls), reviews)

	r.logger.InfoContext(ctx, "pull requests read", "repository", repo.Name, "pull_requests", len(pulls), "reviews", reviews)

	if pulls == nil {
		return []model.PullRequest{}, nil
	}

	return pulls, nil
}
