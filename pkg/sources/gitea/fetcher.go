package gitea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdk "code.gitea.io/sdk/gitea"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// Fetch errors. Any of them aborts the fetch of the repository.
var (
	ErrFetchPage    = errors.New("fetch pull request page")
	ErrFetchReviews = errors.New("fetch pull request reviews")
)

// DefaultPageSize is the number of pull requests requested per page.
const DefaultPageSize = 20

// PageFunc is called before each page is requested, with the 1-based page number.
type PageFunc func(page int)

// Fetcher lists the pull requests of a repository page by page.
type Fetcher struct {
	client   Client
	logger   *slog.Logger
	pageSize int
}

// NewFetcher creates a fetcher. A non-positive pageSize falls back to DefaultPageSize.
func NewFetcher(client Client, pageSize int, logger *slog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{client: client, pageSize: pageSize, logger: logger}
}

// FetchPullRequests returns every pull request of repo created, merged or
// closed at or after since, each with its full review list, in listing order.
// Paging stops at the first page without a matching pull request. Reviews of
// the pull requests kept from one page are fetched concurrently.
func (f *Fetcher) FetchPullRequests(
	ctx context.Context, repo model.Repository, since time.Time, onPage PageFunc,
) ([]model.PullRequest, error) {
	var result []model.PullRequest

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if onPage != nil {
			onPage(page)
		}

		listed, _, err := f.client.ListRepoPullRequests(repo.Owner, repo.Name, sdk.ListPullRequestsOptions{
			ListOptions: sdk.ListOptions{Page: page, PageSize: f.pageSize},
			State:       sdk.StateAll,
		})
		if err != nil {
			return nil, fmt.Errorf("%w %d of %s/%s: %w", ErrFetchPage, page, repo.Owner, repo.Name, err)
		}

		kept := filterSince(listed, since)

		f.logger.DebugContext(ctx, "pull request page",
			"repository", repo.Name, "page", page, "listed", len(listed), "kept", len(kept))

		if len(kept) == 0 {
			break
		}

		reviews, err := f.fetchReviews(ctx, repo, kept)
		if err != nil {
			return nil, err
		}

		for i, pr := range kept {
			result = append(result, toPullRequest(pr, reviews[i]))
		}
	}

	return result, nil
}

func (f *Fetcher) fetchReviews(
	ctx context.Context, repo model.Repository, pulls []*sdk.PullRequest,
) ([][]*sdk.PullReview, error) {
	reviews := make([][]*sdk.PullReview, len(pulls))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, pr := range pulls {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			list, _, err := f.client.ListPullReviews(repo.Owner, repo.Name, pr.Index, sdk.ListPullReviewsOptions{})
			if err != nil {
				return fmt.Errorf("%w #%d of %s/%s: %w", ErrFetchReviews, pr.Index, repo.Owner, repo.Name, err)
			}

			reviews[i] = list

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return reviews, nil
}

func filterSince(pulls []*sdk.PullRequest, since time.Time) []*sdk.PullRequest {
	var kept []*sdk.PullRequest

	for _, pr := range pulls {
		if pr == nil {
			continue
		}

		if model.TimestampOf(pr.Created).NotBefore(since) ||
			model.TimestampOf(pr.Merged).NotBefore(since) ||
			model.TimestampOf(pr.Closed).NotBefore(since) {
			kept = append(kept, pr)
		}
	}

	return kept
}

func toPullRequest(pr *sdk.PullRequest, reviews []*sdk.PullReview) model.PullRequest {
	out := model.PullRequest{
		Number:    pr.Index,
		Title:     pr.Title,
		Author:    identityOf(pr.Poster),
		State:     string(pr.State),
		CreatedAt: model.TimestampOf(pr.Created),
		MergedAt:  model.TimestampOf(pr.Merged),
		ClosedAt:  model.TimestampOf(pr.Closed),
		Reviews:   make([]model.Review, 0, len(reviews)),
	}

	for _, review := range reviews {
		if review == nil {
			continue
		}

		out.Reviews = append(out.Reviews, toReview(review))
	}

	return out
}

func toReview(review *sdk.PullReview) model.Review {
	reviewer := model.Anonymous()
	if review.Reviewer != nil {
		reviewer = model.Identified(identityOf(review.Reviewer))
	}

	return model.Review{
		ID:            review.ID,
		Reviewer:      reviewer,
		State:         model.ParseReviewState(string(review.State)),
		CommentsCount: review.CodeCommentsCount,
	}
}

func identityOf(user *sdk.User) model.Identity {
	if user == nil {
		return model.Identity{}
	}

	return model.Identity{Login: user.UserName, Email: user.Email}
}
