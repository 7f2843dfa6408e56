package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sprintstats/pkg/analyzer"
	"github.com/Sumatoshi-tech/sprintstats/pkg/config"
	"github.com/Sumatoshi-tech/sprintstats/pkg/fetch"
	"github.com/Sumatoshi-tech/sprintstats/pkg/gitlib"
	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
	"github.com/Sumatoshi-tech/sprintstats/pkg/report"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/gitea"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/history"
	"github.com/Sumatoshi-tech/sprintstats/pkg/store"
)

const (
	testUsers = `{
  "alice": {"avatarUrl": "https://a/alice.png", "role": "backend", "teams": ["core"], "emails": ["alice@x.com"]},
  "bob": {"avatarUrl": "https://a/bob.png", "role": "frontend", "teams": ["core", "web"], "emails": ["bob@x.com"]}
}`
	testSprints = `{
  "S1": {"since": "2024-01-01T00:00:00Z", "until": "2024-01-14T23:59:59Z"},
  "S2": {"since": "2024-01-15T00:00:00Z", "until": "2024-01-28T23:59:59Z"}
}`
	testRepos = `{
  "api": {"ssh": "git@example.com:team/api.git", "branch": "main", "owner": "team"}
}`
)

type stubHistory struct {
	commits []model.Commit
	err     error
}

func (s stubHistory) Fetch(
	context.Context, model.Repository, time.Time, gitlib.ProgressFunc,
) (history.Result, error) {
	return history.Result{Action: history.ActionCloned, Commits: s.commits}, s.err
}

type stubPulls struct {
	pulls []model.PullRequest
}

func (s stubPulls) FetchPullRequests(
	context.Context, model.Repository, time.Time, gitea.PageFunc,
) ([]model.PullRequest, error) {
	return s.pulls, nil
}

func writeCatalogs(t *testing.T, users string) (dir string, args []string) {
	t.Helper()

	dir = t.TempDir()

	files := map[string]string{
		"users.json":        users,
		"sprints.json":      testSprints,
		"repositories.json": testRepos,
		"settings.yaml":     "format: markdown\n",
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return dir, []string{
		"--config", filepath.Join(dir, "settings.yaml"),
		"--users", filepath.Join(dir, "users.json"),
		"--sprints", filepath.Join(dir, "sprints.json"),
		"--repos", filepath.Join(dir, "repositories.json"),
	}
}

func sampleHistory() stubHistory {
	return stubHistory{commits: []model.Commit{
		{Email: "alice@x.com", When: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), FilesChanged: 2, Insertions: 10, Deletions: 2},
		{Email: "bob@x.com", When: time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC), FilesChanged: 1, Insertions: 5},
	}}
}

func samplePulls() stubPulls {
	created := model.At(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC))
	merged := model.At(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	return stubPulls{pulls: []model.PullRequest{{
		Number:    1,
		Author:    model.Identity{Login: "alice", Email: "alice@x.com"},
		CreatedAt: created,
		MergedAt:  merged,
		ClosedAt:  merged,
		Reviews: []model.Review{{
			ID:            1,
			Reviewer:      model.Identified(model.Identity{Login: "bob", Email: "bob@x.com"}),
			State:         model.ReviewApproved,
			CommentsCount: 3,
		}},
	}}}
}

type harness struct {
	cmd    *cobra.Command
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(cmd *cobra.Command) *harness {
	RegisterPersistentFlags(cmd)

	h := &harness{cmd: cmd}
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)

	return h
}

func (h *harness) execute(args ...string) error {
	h.cmd.SetArgs(args)

	return h.cmd.Execute()
}

func newTestReportCommand(hist fetch.HistorySource, pulls fetch.PullSource) *harness {
	return newHarness(newReportCommandWithDeps(
		func(*config.Settings, *slog.Logger) fetch.HistorySource { return hist },
		func(context.Context, *config.Settings, *slog.Logger) (fetch.PullSource, error) { return pulls, nil },
	))
}

func remoteArgs(outDir string) []string {
	return []string{
		"--gitea_url", "https://gitea.example.com",
		"--gitea_token", "secret",
		"--output_dir", outDir,
		"--silent",
	}
}

func TestReportCommand_WritesTeamReports(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, testUsers)
	outDir := filepath.Join(dir, "out")
	metricsFile := filepath.Join(dir, "sprintstats.prom")

	h := newTestReportCommand(sampleHistory(), samplePulls())

	args = append(args, remoteArgs(outDir)...)
	args = append(args, "--metrics_file", metricsFile)
	require.NoError(t, h.execute(args...))

	core, err := os.ReadFile(filepath.Join(outDir, "core.md"))
	require.NoError(t, err)

	md := string(core)
	assert.Contains(t, md, "# Sprints")
	assert.Contains(t, md, "## S1 (01.01.2024 - 14.01.2024)")
	assert.Contains(t, md, "## S2 (15.01.2024 - 28.01.2024)")
	assert.Contains(t, md, "**alice**")
	assert.Contains(t, md, "**bob**")
	assert.Contains(t, md, "**12** (*+ 10* / *- 2*)")

	web, err := os.ReadFile(filepath.Join(outDir, "web.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(web), "**alice**")

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "sprintstats_commits_read")
}

func TestReportCommand_JSONCarriesAttribution(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, testUsers)
	outDir := filepath.Join(dir, "out")

	h := newTestReportCommand(sampleHistory(), samplePulls())

	args = append(args, remoteArgs(outDir)...)
	args = append(args, "--format", "json")
	require.NoError(t, h.execute(args...))

	data, err := os.ReadFile(filepath.Join(outDir, "sprints.json"))
	require.NoError(t, err)

	var result analyzer.Report
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result, 2)

	alice := result[0].Users[0]
	assert.Equal(t, "alice", alice.User.Username)
	assert.Equal(t, 1, alice.Metrics.Commits.Commits)
	assert.Equal(t, 1, alice.Metrics.PullRequests.Created)
	assert.Equal(t, 1, alice.Metrics.PullRequests.Merged)
	assert.Equal(t, 3, alice.Metrics.PullRequests.ReceivedDiscussions)

	bob := result[0].Users[1]
	assert.Equal(t, 1, bob.Metrics.PullRequests.ApproverAssigned)
	assert.Equal(t, 1, bob.Metrics.PullRequests.ApproverConducted)
	assert.Equal(t, 3, bob.Metrics.PullRequests.ApproverAddedDiscussions)
	assert.Equal(t, 1, result[1].Users[1].Metrics.Commits.Commits)
}

func TestReportCommand_TextGoesToStdout(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, testUsers)
	outDir := filepath.Join(dir, "out")

	h := newTestReportCommand(sampleHistory(), samplePulls())

	args = append(args, remoteArgs(outDir)...)
	args = append(args, "--format", "text")
	require.NoError(t, h.execute(args...))

	assert.Contains(t, h.stdout.String(), "[core] S1 (01.01.2024 - 14.01.2024)")
	assert.NoDirExists(t, outDir)
}

func TestReportCommand_MissingRemoteSettings(t *testing.T) {
	t.Parallel()

	_, args := writeCatalogs(t, testUsers)

	h := newTestReportCommand(sampleHistory(), samplePulls())

	err := h.execute(args...)
	require.ErrorIs(t, err, config.ErrMissingSetting)
	assert.ErrorContains(t, err, "gitea_url")
	assert.ErrorContains(t, err, "gitea_token")
}

func TestReportCommand_UnknownFormat(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, testUsers)

	h := newTestReportCommand(sampleHistory(), samplePulls())

	args = append(args, remoteArgs(dir)...)
	args = append(args, "--format", "pdf")
	require.ErrorIs(t, h.execute(args...), report.ErrUnknownFormat)
}

func TestReportCommand_FetchFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, testUsers)
	outDir := filepath.Join(dir, "out")
	boom := errors.New("clone failed")

	h := newTestReportCommand(stubHistory{err: boom}, samplePulls())

	args = append(args, remoteArgs(outDir)...)
	require.ErrorIs(t, h.execute(args...), boom)
	assert.NoDirExists(t, outDir)
}

func TestReportCommand_InvalidCatalogAbortsBeforeFetch(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, `{"alice": {"avatarUrl": "a", "role": "r", "teams": ["core"]}}`)
	outDir := filepath.Join(dir, "out")

	fetched := false
	h := newHarness(newReportCommandWithDeps(
		func(*config.Settings, *slog.Logger) fetch.HistorySource {
			fetched = true

			return sampleHistory()
		},
		func(context.Context, *config.Settings, *slog.Logger) (fetch.PullSource, error) {
			fetched = true

			return samplePulls(), nil
		},
	))

	args = append(args, remoteArgs(outDir)...)
	err := h.execute(args...)
	require.ErrorIs(t, err, config.ErrMissingField)
	assert.ErrorContains(t, err, "emails")
	assert.False(t, fetched)
}

func TestValidateCommand_Valid(t *testing.T) {
	t.Parallel()

	_, args := writeCatalogs(t, testUsers)

	h := newHarness(NewValidateCommand())
	require.NoError(t, h.execute(args...))

	out := h.stdout.String()
	assert.Contains(t, out, "teams: core, web")
	assert.Contains(t, out, "from 2024-01-01 to 2024-01-28")
	assert.Contains(t, out, "team/api")
	assert.Contains(t, h.stderr.String(), "catalogs are valid")
}

func TestValidateCommand_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	dir, args := writeCatalogs(t, `{
  "alice": {"avatarUrl": "a", "role": "r", "teams": ["core"], "emails": ["same@x.com"]},
  "bob": {"avatarUrl": "b", "role": "r", "teams": ["core"], "emails": ["same@x.com"]}
}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sprints.json"),
		[]byte(`{"S1": {"since": "2024-02-01T00:00:00Z", "until": "2024-01-01T00:00:00Z"}}`), 0o600))

	h := newHarness(NewValidateCommand())

	err := h.execute(args...)
	require.ErrorIs(t, err, config.ErrDuplicateAlias)
	require.ErrorIs(t, err, config.ErrInvalidSprint)
	assert.Contains(t, h.stderr.String(), "invalid:")
}

func TestReportUnmatched_LogsUntrackedAuthors(t *testing.T) {
	t.Parallel()

	events := store.New()
	repo := model.Repository{Name: "api"}

	events.InsertCommits(repo, []model.Commit{
		{Email: "alice@x.com"}, {Email: "ci@bot"}, {Email: "ci@bot"},
	})
	events.InsertPullRequests(repo, []model.PullRequest{{
		Author: model.Identity{Email: "ghost@x.com"},
		Reviews: []model.Review{
			{Reviewer: model.Anonymous()},
			{Reviewer: model.Identified(model.Identity{Email: "bob@x.com"})},
		},
	}})

	emails := slices.Collect(sourceEmails(events))
	assert.Equal(t, []string{"alice@x.com", "ci@bot", "ci@bot", "ghost@x.com", "bob@x.com"}, emails)

	var buf bytes.Buffer

	users := []model.User{
		{Username: "alice", Emails: []string{"alice@x.com"}},
		{Username: "bob", Emails: []string{"bob@x.com"}},
	}
	reportUnmatched(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)), users, events)

	assert.Contains(t, buf.String(), "events by untracked authors")
	assert.Contains(t, buf.String(), "emails=2")
	assert.Contains(t, buf.String(), "ci@bot (2)")
}

func TestObservabilityConfig_FromFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		args         []string
		wantEndpoint string
		wantHeaders  map[string]string
		wantInsecure bool
		wantProm     bool
	}{
		{name: "defaults"},
		{
			name: "plaintext collector with auth",
			args: []string{
				"--otlp_endpoint", "localhost:4317",
				"--otlp_headers", "authorization=Bearer abc, x-tenant=team",
				"--otlp_insecure",
			},
			wantEndpoint: "localhost:4317",
			wantHeaders:  map[string]string{"authorization": "Bearer abc", "x-tenant": "team"},
			wantInsecure: true,
		},
		{
			name:     "metrics file enables prometheus",
			args:     []string{"--metrics_file", "run.prom"},
			wantProm: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestReportCommand(stubHistory{}, stubPulls{})
			require.NoError(t, h.cmd.ParseFlags(tt.args))

			settings, err := loadSettings(h.cmd)
			require.NoError(t, err)

			cfg, err := observabilityConfig(settings)
			require.NoError(t, err)

			assert.Equal(t, tt.wantEndpoint, cfg.OTLPEndpoint)
			assert.Equal(t, tt.wantHeaders, cfg.OTLPHeaders)
			assert.Equal(t, tt.wantInsecure, cfg.OTLPInsecure)
			assert.Equal(t, tt.wantProm, cfg.Prometheus)
		})
	}
}

func TestObservabilityConfig_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, err := observabilityConfig(&config.Settings{LogLevel: "loud"})
	require.Error(t, err)
}
