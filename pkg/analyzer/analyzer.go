// Package analyzer attributes fetched commits, pull requests and reviews to
// (sprint, user) cells and folds them into counters.
package analyzer

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// ErrNoSprints is returned by MinSince for an empty sprint catalog.
var ErrNoSprints = model.ErrNoSprints

// Events is the read side of the event store consumed by the engine.
type Events interface {
	Commits() iter.Seq[*model.Commit]
	PullRequests() iter.Seq[*model.PullRequest]
}

// Analyzer computes a Report from the stored events and the catalogs.
type Analyzer struct {
	users   []model.User
	sprints []model.Sprint
}

// New creates an analyzer over the given catalogs.
func New(users []model.User, sprints []model.Sprint) *Analyzer {
	return &Analyzer{users: users, sprints: sprints}
}

// Analyze produces one SprintResult per sprint and, inside each, one UserResult
// per user. Sprints are processed concurrently; each goroutine writes only its own
// slot, so the result equals a sequential pass.
func (a *Analyzer) Analyze(ctx context.Context, events Events) (Report, error) {
	report := make(Report, len(a.sprints))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, sprint := range a.sprints {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("analyze sprint %s: %w", sprint.Name, err)
			}

			report[i] = a.analyzeSprint(sprint, events)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return report, nil
}

func (a *Analyzer) analyzeSprint(sprint model.Sprint, events Events) SprintResult {
	result := SprintResult{
		Sprint: sprint,
		Users:  make([]UserResult, len(a.users)),
	}

	for i, user := range a.users {
		result.Users[i] = UserResult{
			User:    user,
			Metrics: AnalyzeCell(sprint, user, events),
		}
	}

	return result
}

// AnalyzeCell computes the metrics of a single (sprint, user) cell by scanning
// every stored event.
func AnalyzeCell(sprint model.Sprint, user model.User, events Events) UserMetrics {
	var metrics UserMetrics

	for commit := range events.Commits() {
		if user.HasAlias(commit.Email) && sprint.Contains(commit.When) {
			metrics.Commits.Add(commit)
		}
	}

	for pr := range events.PullRequests() {
		if user.HasAlias(pr.Author.Email) {
			analyzeRequest(&metrics.PullRequests, pr, sprint)
			analyzeReceivedDiscussions(&metrics.PullRequests, pr, sprint)
		}

		analyzeReviews(&metrics.PullRequests, pr, sprint, user)
	}

	return metrics
}

// analyzeRequest counts the pull request lifecycle events of its author.
// Merged needs both merged and closed timestamps inside the window; closed
// without merge needs closed inside and merged outside.
func analyzeRequest(m *PullRequestMetrics, pr *model.PullRequest, sprint model.Sprint) {
	mergedIn := sprint.Includes(pr.MergedAt)
	closedIn := sprint.Includes(pr.ClosedAt)

	if sprint.Includes(pr.CreatedAt) {
		m.Created++
	}

	if mergedIn && closedIn {
		m.Merged++
	}

	if !mergedIn && closedIn {
		m.Closed++
	}
}

func analyzeReceivedDiscussions(m *PullRequestMetrics, pr *model.PullRequest, sprint model.Sprint) {
	if !sprint.Includes(pr.ClosedAt) {
		return
	}

	for _, review := range pr.Reviews {
		m.ReceivedDiscussions += review.CommentsCount
	}
}

// analyzeReviews credits user for the reviews it left on a pull request closed
// in the sprint. Assigned and conducted count once per pull request; comments
// of every matching review are summed.
func analyzeReviews(m *PullRequestMetrics, pr *model.PullRequest, sprint model.Sprint, user model.User) {
	if !sprint.Includes(pr.ClosedAt) {
		return
	}

	var (
		assigned   bool
		conducted  bool
		discussion int
	)

	for _, review := range pr.Reviews {
		identity, ok := review.Reviewer.Identity()
		if !ok || !user.HasAlias(identity.Email) {
			continue
		}

		assigned = true

		if review.State.Conducted() {
			conducted = true
		}

		discussion += review.CommentsCount
	}

	if assigned {
		m.ApproverAssigned++
	}

	if conducted {
		m.ApproverConducted++
	}

	m.ApproverAddedDiscussions += discussion
}

// MinSince returns the earliest sprint start, the lower bound of every fetch.
func MinSince(sprints []model.Sprint) (time.Time, error) {
	if len(sprints) == 0 {
		return time.Time{}, ErrNoSprints
	}

	earliest := slices.MinFunc(sprints, func(a, b model.Sprint) int {
		return a.Since.Compare(b.Since)
	})

	return earliest.Since, nil
}

// Teams returns the distinct team names of users in first-seen order.
func Teams(users []model.User) []string {
	var teams []string

	for _, user := range users {
		for _, team := range user.Teams {
			if !slices.Contains(teams, team) {
				teams = append(teams, team)
			}
		}
	}

	return teams
}
