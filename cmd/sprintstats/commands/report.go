package commands

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
	"github.com/Sumatoshi-tech/sprintstats/pkg/config"
	"github.com/Sumatoshi-tech/sprintstats/pkg/fetch"
	"github.com/Sumatoshi-tech/sprintstats/pkg/identity"
	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
	"github.com/Sumatoshi-tech/sprintstats/pkg/observability"
	"github.com/Sumatoshi-tech/sprintstats/pkg/report"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/gitea"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/history"
	"github.com/Sumatoshi-tech/sprintstats/pkg/store"
	"github.com/Sumatoshi-tech/sprintstats/pkg/version"
)

const (
	spanRun     = "sprintstats.run"
	spanAnalyze = "sprintstats.analyze"

	maxUnmatchedLogged = 5
)

// HistoryFactory builds the history source of a run.
type HistoryFactory func(settings *config.Settings, logger *slog.Logger) fetch.HistorySource

// PullsFactory builds the pull request source of a run.
type PullsFactory func(ctx context.Context, settings *config.Settings, logger *slog.Logger) (fetch.PullSource, error)

// ReportCommand holds the dependencies of the report command.
type ReportCommand struct {
	newHistory HistoryFactory
	newPulls   PullsFactory
}

// NewReportCommand creates the report command wired to git and Gitea.
func NewReportCommand() *cobra.Command {
	return newReportCommandWithDeps(defaultHistory, defaultPulls)
}

func newReportCommandWithDeps(newHistory HistoryFactory, newPulls PullsFactory) *cobra.Command {
	rc := &ReportCommand{newHistory: newHistory, newPulls: newPulls}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch all repositories and render the team reports",
		Long: `Fetch the history and pull requests of every tracked repository since the
earliest sprint start, attribute them to users per sprint and write one report
per team. Nothing is written unless every repository was fetched.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	registerCatalogFlags(cmd)
	cmd.Flags().String("cache_path", config.DefaultCachePath, "Directory holding the local repository copies")
	cmd.Flags().String("gitea_url", "", "Gitea base URL (required)")
	cmd.Flags().String("gitea_token", "", "Gitea access token (required)")
	cmd.Flags().String("output_dir", config.DefaultOutputDir, "Directory the reports are written to")
	cmd.Flags().String("format", config.DefaultFormat, "Report format: markdown, text, yaml, json, html")
	cmd.Flags().Int("page_size", config.DefaultPageSize, "Pull requests requested per page")
	cmd.Flags().String("metrics_file", "", "Write run metrics in Prometheus textfile format")
	cmd.Flags().String("otlp_endpoint", "", "OTLP gRPC endpoint for traces and metrics")
	cmd.Flags().String("otlp_headers", "", "OTLP gRPC headers as key=value,key=value")
	cmd.Flags().Bool("otlp_insecure", false, "Dial the OTLP endpoint without TLS")
	cmd.Flags().Bool("silent", false, "Disable progress output")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}

func defaultHistory(settings *config.Settings, logger *slog.Logger) fetch.HistorySource {
	return history.NewReader(settings.CachePath, logger)
}

func defaultPulls(ctx context.Context, settings *config.Settings, logger *slog.Logger) (fetch.PullSource, error) {
	client, err := gitea.NewClient(ctx, settings.GiteaURL, settings.GiteaToken, nil)
	if err != nil {
		return nil, err
	}

	return gitea.NewFetcher(client, settings.PageSize, logger), nil
}

func (rc *ReportCommand) run(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	err = settings.ValidateRemote()
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(settings.Format)
	if err != nil {
		return err
	}

	if settings.NoColor {
		color.NoColor = true
	}

	providers, err := initObservability(settings)
	if err != nil {
		return err
	}

	defer func() { _ = providers.Shutdown(context.Background()) }()

	catalogs, err := config.LoadCatalogs(settings.CatalogPaths())
	if err != nil {
		return err
	}

	metrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx, span := providers.Tracer.Start(cmd.Context(), spanRun)
	defer span.End()

	result, err := rc.analyze(ctx, cmd.ErrOrStderr(), settings, catalogs, providers, metrics)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	err = rc.emit(cmd, settings, format, result, analyzer.Teams(catalogs.Users))
	if err != nil {
		return err
	}

	if settings.MetricsFile != "" {
		err = observability.WriteTextfile(settings.MetricsFile, providers.Gatherer)
		if err != nil {
			return err
		}
	}

	return nil
}

func initObservability(settings *config.Settings) (observability.Providers, error) {
	cfg, err := observabilityConfig(settings)
	if err != nil {
		return observability.Providers{}, err
	}

	return observability.Init(cfg)
}

func observabilityConfig(settings *config.Settings) (observability.Config, error) {
	level, err := observability.ParseLogLevel(settings.LogLevel)
	if err != nil {
		return observability.Config{}, err
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.LogLevel = level
	cfg.LogJSON = settings.LogJSON
	cfg.OTLPEndpoint = settings.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(settings.OTLPHeaders)
	cfg.OTLPInsecure = settings.OTLPInsecure
	cfg.Prometheus = settings.MetricsFile != ""

	return cfg, nil
}

// analyze fetches every repository and runs the attribution over the result.
func (rc *ReportCommand) analyze(
	ctx context.Context,
	progressWriter io.Writer,
	settings *config.Settings,
	catalogs *config.Catalogs,
	providers observability.Providers,
	metrics *observability.RunMetrics,
) (analyzer.Report, error) {
	since, err := analyzer.MinSince(catalogs.Sprints)
	if err != nil {
		return nil, err
	}

	progressf(settings.Silent, progressWriter, "fetching %d repositories since %s (%s)",
		len(catalogs.Repositories), since.Format(time.DateOnly), humanize.Time(since))

	pulls, err := rc.newPulls(ctx, settings, providers.Logger)
	if err != nil {
		return nil, err
	}

	opts := []fetch.Option{
		fetch.WithLogger(providers.Logger),
		fetch.WithTracer(providers.Tracer),
		fetch.WithMetrics(metrics),
	}

	var tracker *fetch.TrackerProgress
	if !settings.Silent {
		tracker = fetch.NewTrackerProgress(progressWriter)
		opts = append(opts, fetch.WithProgress(tracker))
	}

	runner := fetch.NewRunner(rc.newHistory(settings, providers.Logger), pulls, opts...)

	events, err := runner.Run(ctx, catalogs.Repositories, since)

	if tracker != nil {
		tracker.Stop()
	}

	if err != nil {
		return nil, err
	}

	reportUnmatched(ctx, providers.Logger, catalogs.Users, events)

	ctx, span := providers.Tracer.Start(ctx, spanAnalyze, trace.WithAttributes(
		attribute.Int("sprints", len(catalogs.Sprints)),
		attribute.Int("users", len(catalogs.Users)),
	))
	defer span.End()

	started := time.Now()

	result, err := analyzer.New(catalogs.Users, catalogs.Sprints).Analyze(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	metrics.RecordAnalyze(ctx, time.Since(started))

	commits, pullRequests := events.Counts()
	progressf(settings.Silent, progressWriter, "analyzed %s commits and %s pull requests",
		humanize.Comma(int64(commits)), humanize.Comma(int64(pullRequests)))

	return result, nil
}

// reportUnmatched logs the most frequent source emails that belong to no
// tracked user, which usually means an alias is missing from the catalog.
func reportUnmatched(ctx context.Context, logger *slog.Logger, users []model.User, events *store.Store) {
	ix, err := identity.NewIndex(users)
	if err != nil {
		return
	}

	unmatched := ix.Unmatched(sourceEmails(events))
	if len(unmatched) == 0 {
		return
	}

	top := make([]string, 0, maxUnmatchedLogged)
	for _, u := range unmatched[:min(len(unmatched), maxUnmatchedLogged)] {
		top = append(top, fmt.Sprintf("%s (%d)", u.Email, u.Count))
	}

	logger.InfoContext(ctx, "events by untracked authors", "emails", len(unmatched), "top", top)
}

func sourceEmails(events *store.Store) iter.Seq[string] {
	return func(yield func(string) bool) {
		for c := range events.Commits() {
			if !yield(c.Email) {
				return
			}
		}

		for pr := range events.PullRequests() {
			if !yield(pr.Author.Email) {
				return
			}

			for _, review := range pr.Reviews {
				if reviewer, ok := review.Reviewer.Identity(); ok && !yield(reviewer.Email) {
					return
				}
			}
		}
	}
}

// emit renders every document before writing any of them.
func (rc *ReportCommand) emit(
	cmd *cobra.Command, settings *config.Settings, format report.Format, result analyzer.Report, teams []string,
) error {
	if format == report.FormatText {
		return report.WriteText(cmd.OutOrStdout(), result, teams)
	}

	files, err := report.Render(result, teams, format)
	if err != nil {
		return err
	}

	paths, err := report.WriteFiles(settings.OutputDir, files)
	if err != nil {
		return err
	}

	if !settings.Silent {
		for _, path := range paths {
			_, _ = statusOK.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
	}

	return nil
}
