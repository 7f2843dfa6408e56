package gitea_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	sdk "code.gitea.io/sdk/gitea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
	"github.com/Sumatoshi-tech/sprintstats/pkg/sources/gitea"
)

const testPageSize = 2

var (
	since = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo  = model.Repository{Name: "api", Owner: "team", Branch: "main"}

	errBoom = errors.New("boom")
)

func ptr(t time.Time) *time.Time { return &t }

func pull(index int64, created time.Time) *sdk.PullRequest {
	return &sdk.PullRequest{
		Index:   index,
		Title:   "PR " + strconv.FormatInt(index, 10),
		State:   sdk.StateOpen,
		Poster:  &sdk.User{UserName: "alice", Email: "alice@x.com"},
		Created: ptr(created),
	}
}

// fakeClient serves fixed pages and reviews and records the calls it receives.
type fakeClient struct {
	pages      [][]*sdk.PullRequest
	reviews    map[int64][]*sdk.PullReview
	pageErr    error
	reviewErr  error
	barrier    *sync.WaitGroup
	mu         sync.Mutex
	pageCalls  []sdk.ListPullRequestsOptions
	reviewSeen []int64
}

func (c *fakeClient) ListRepoPullRequests(
	owner, name string, opt sdk.ListPullRequestsOptions,
) ([]*sdk.PullRequest, *sdk.Response, error) {
	c.mu.Lock()
	c.pageCalls = append(c.pageCalls, opt)
	c.mu.Unlock()

	if owner != repo.Owner || name != repo.Name {
		return nil, nil, fmt.Errorf("unexpected repository %s/%s", owner, name)
	}

	if c.pageErr != nil {
		return nil, nil, c.pageErr
	}

	if opt.Page > len(c.pages) {
		return nil, nil, nil
	}

	return c.pages[opt.Page-1], nil, nil
}

func (c *fakeClient) ListPullReviews(
	_, _ string, index int64, _ sdk.ListPullReviewsOptions,
) ([]*sdk.PullReview, *sdk.Response, error) {
	c.mu.Lock()
	c.reviewSeen = append(c.reviewSeen, index)
	c.mu.Unlock()

	if c.barrier != nil {
		c.barrier.Done()

		done := make(chan struct{})

		go func() {
			c.barrier.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return nil, nil, errors.New("reviews were not requested concurrently")
		}
	}

	if c.reviewErr != nil {
		return nil, nil, c.reviewErr
	}

	return c.reviews[index], nil, nil
}

func newFetcher(client gitea.Client) *gitea.Fetcher {
	return gitea.NewFetcher(client, testPageSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPullRequests_StopsAtFirstEmptyFilteredPage(t *testing.T) {
	t.Parallel()

	old := since.Add(-48 * time.Hour)

	client := &fakeClient{
		pages: [][]*sdk.PullRequest{
			{pull(5, since.Add(time.Hour)), pull(4, since)},
			{pull(3, old), pull(2, since.Add(2*time.Hour))},
			{pull(1, old)},
			{pull(0, since.Add(time.Hour))},
		},
	}

	var pages []int

	prs, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, func(page int) {
		pages = append(pages, page)
	})
	require.NoError(t, err)

	numbers := make([]int64, 0, len(prs))
	for _, pr := range prs {
		numbers = append(numbers, pr.Number)
	}

	assert.Equal(t, []int64{5, 4, 2}, numbers)
	assert.Equal(t, []int{1, 2, 3}, pages)
	require.Len(t, client.pageCalls, 3)

	for i, call := range client.pageCalls {
		assert.Equal(t, i+1, call.Page)
		assert.Equal(t, testPageSize, call.PageSize)
		assert.Equal(t, sdk.StateAll, call.State)
	}

	assert.ElementsMatch(t, []int64{5, 4, 2}, client.reviewSeen)
}

func TestFetchPullRequests_KeepsOnMergedOrClosed(t *testing.T) {
	t.Parallel()

	old := since.Add(-time.Hour)

	merged := pull(1, old)
	merged.Merged = ptr(since)

	closed := pull(2, old)
	closed.Closed = ptr(since.Add(time.Minute))

	stale := pull(3, old)
	stale.Closed = ptr(old)

	client := &fakeClient{pages: [][]*sdk.PullRequest{{merged, closed, stale}}}

	prs, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, int64(1), prs[0].Number)
	assert.Equal(t, int64(2), prs[1].Number)
}

func TestFetchPullRequests_ShapesRecords(t *testing.T) {
	t.Parallel()

	pr := pull(7, since.Add(time.Hour))
	pr.State = sdk.StateClosed
	pr.Merged = ptr(since.Add(2 * time.Hour))
	pr.Closed = ptr(since.Add(2 * time.Hour))

	client := &fakeClient{
		pages: [][]*sdk.PullRequest{{pr}},
		reviews: map[int64][]*sdk.PullReview{
			7: {
				{ID: 1, Reviewer: &sdk.User{UserName: "bob", Email: "bob@x.com"}, State: sdk.ReviewStateApproved, CodeCommentsCount: 4},
				{ID: 2, State: sdk.ReviewStateComment, CodeCommentsCount: 1},
				{ID: 3, Reviewer: &sdk.User{UserName: "eve"}, State: "SOMETHING_NEW"},
			},
		},
	}

	prs, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	require.Len(t, prs, 1)

	got := prs[0]
	assert.Equal(t, int64(7), got.Number)
	assert.Equal(t, "PR 7", got.Title)
	assert.Equal(t, "closed", got.State)
	assert.Equal(t, model.Identity{Login: "alice", Email: "alice@x.com"}, got.Author)
	assert.Equal(t, model.At(since.Add(time.Hour)), got.CreatedAt)
	assert.Equal(t, model.At(since.Add(2*time.Hour)), got.MergedAt)
	assert.Equal(t, model.At(since.Add(2*time.Hour)), got.ClosedAt)

	require.Len(t, got.Reviews, 3)

	bob, ok := got.Reviews[0].Reviewer.Identity()
	require.True(t, ok)
	assert.Equal(t, "bob@x.com", bob.Email)
	assert.Equal(t, model.ReviewApproved, got.Reviews[0].State)
	assert.Equal(t, 4, got.Reviews[0].CommentsCount)

	_, ok = got.Reviews[1].Reviewer.Identity()
	assert.False(t, ok)
	assert.Equal(t, model.ReviewComment, got.Reviews[1].State)

	assert.Equal(t, model.ReviewUnknown, got.Reviews[2].State)
}

func TestFetchPullRequests_OpenPullRequestHasNoEndTimestamps(t *testing.T) {
	t.Parallel()

	client := &fakeClient{pages: [][]*sdk.PullRequest{{pull(1, since)}}}

	prs, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.False(t, prs[0].MergedAt.Valid)
	assert.False(t, prs[0].ClosedAt.Valid)
	assert.Empty(t, prs[0].Reviews)
}

func TestFetchPullRequests_ReviewsFetchedConcurrently(t *testing.T) {
	t.Parallel()

	page := []*sdk.PullRequest{pull(1, since), pull(2, since), pull(3, since)}

	var barrier sync.WaitGroup

	barrier.Add(len(page))

	client := &fakeClient{pages: [][]*sdk.PullRequest{page}, barrier: &barrier}

	fetcher := gitea.NewFetcher(client, len(page), nil)

	prs, err := fetcher.FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	assert.Len(t, prs, 3)
}

func TestFetchPullRequests_PageError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{pageErr: errBoom}

	_, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.ErrorIs(t, err, gitea.ErrFetchPage)
	require.ErrorIs(t, err, errBoom)
}

func TestFetchPullRequests_ReviewError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		pages:     [][]*sdk.PullRequest{{pull(1, since)}},
		reviewErr: errBoom,
	}

	_, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.ErrorIs(t, err, gitea.ErrFetchReviews)
	require.ErrorIs(t, err, errBoom)
}

func TestFetchPullRequests_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{pages: [][]*sdk.PullRequest{{pull(1, since)}}}

	_, err := newFetcher(client).FetchPullRequests(ctx, repo, since, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.pageCalls)
}

func TestNewFetcher_DefaultPageSize(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}

	_, err := gitea.NewFetcher(client, 0, nil).FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	require.Len(t, client.pageCalls, 1)
	assert.Equal(t, gitea.DefaultPageSize, client.pageCalls[0].PageSize)
}

func TestFetchPullRequests_AgainstServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/repos/team/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))

		body := "[]"
		if r.URL.Query().Get("page") == "1" {
			body = `[{"number": 9, "title": "Add cache", "state": "closed",
				"user": {"login": "alice", "email": "alice@x.com"},
				"created_at": "2024-01-03T10:00:00Z",
				"merged_at": "2024-01-10T10:00:00Z",
				"closed_at": "2024-01-10T10:00:00Z"}]`
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})

	mux.HandleFunc("/api/v1/repos/team/api/pulls/9/reviews", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "user": map[string]any{"login": "bob", "email": "bob@x.com"}, "state": "APPROVED", "comments_count": 3},
			{"id": 2, "user": nil, "state": "COMMENT", "comments_count": 1},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gitea.NewClient(context.Background(), server.URL, "secret", server.Client())
	require.NoError(t, err)

	prs, err := newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.NoError(t, err)
	require.Len(t, prs, 1)

	assert.Equal(t, int64(9), prs[0].Number)
	assert.Equal(t, "alice@x.com", prs[0].Author.Email)
	assert.True(t, prs[0].MergedAt.Valid)
	require.Len(t, prs[0].Reviews, 2)
	assert.Equal(t, 3, prs[0].Reviews[0].CommentsCount)
	assert.Equal(t, model.ReviewApproved, prs[0].Reviews[0].State)
	assert.Equal(t, model.Anonymous(), prs[0].Reviews[1].Reviewer)
}

func TestFetchPullRequests_MalformedRemoteTimestamp(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"number": 1, "created_at": "last tuesday"}]`)
	}))
	t.Cleanup(server.Close)

	client, err := gitea.NewClient(context.Background(), server.URL, "secret", server.Client())
	require.NoError(t, err)

	_, err = newFetcher(client).FetchPullRequests(context.Background(), repo, since, nil)
	require.ErrorIs(t, err, gitea.ErrFetchPage)
}
