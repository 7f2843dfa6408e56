package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
	"github.com/Sumatoshi-tech/sprintstats/pkg/store"
)

func commitAt(email string, day int) model.Commit {
	return model.Commit{Email: email, When: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC), FilesChanged: 1}
}

func TestStore_InsertReplacesPerRepository(t *testing.T) {
	t.Parallel()

	s := store.New()
	repo := model.Repository{Name: "api"}

	s.InsertCommits(repo, []model.Commit{commitAt("a@x.com", 1), commitAt("a@x.com", 2)})
	s.InsertCommits(repo, []model.Commit{commitAt("b@x.com", 3)})

	got := s.RepositoryCommits(repo)
	require.Len(t, got, 1)
	assert.Equal(t, "b@x.com", got[0].Email)
	assert.Len(t, s.Repositories(), 1)
}

func TestStore_PreservesSourceOrder(t *testing.T) {
	t.Parallel()

	s := store.New()
	api := model.Repository{Name: "api"}
	web := model.Repository{Name: "web"}

	s.InsertCommits(api, []model.Commit{commitAt("a", 3), commitAt("b", 1)})
	s.InsertPullRequests(web, []model.PullRequest{{Number: 7}, {Number: 2}})
	s.InsertCommits(web, []model.Commit{commitAt("c", 2)})

	var emails []string
	for c := range s.Commits() {
		emails = append(emails, c.Email)
	}

	var numbers []int64
	for pr := range s.PullRequests() {
		numbers = append(numbers, pr.Number)
	}

	assert.Equal(t, []string{"a", "b", "c"}, emails)
	assert.Equal(t, []int64{7, 2}, numbers)
	assert.Equal(t, []model.Repository{api, web}, s.Repositories())

	commits, pullRequests := s.Counts()
	assert.Equal(t, 3, commits)
	assert.Equal(t, 2, pullRequests)
}

func TestCollector_AppliesConcurrentBatches(t *testing.T) {
	t.Parallel()

	const repos = 16

	collector := store.NewCollector()

	var wg sync.WaitGroup

	for i := range repos {
		repo := model.Repository{Name: fmt.Sprintf("repo-%d", i)}

		wg.Add(2)

		go func() {
			defer wg.Done()

			collector.Send(store.Batch{Repository: repo, Commits: []model.Commit{commitAt("a", 1)}})
		}()

		go func() {
			defer wg.Done()

			collector.Send(store.Batch{Repository: repo, PullRequests: []model.PullRequest{{Number: 1}}})
		}()
	}

	wg.Wait()

	s := collector.Close()

	commits, pullRequests := s.Counts()
	assert.Equal(t, repos, commits)
	assert.Equal(t, repos, pullRequests)
	assert.Len(t, s.Repositories(), repos)
}

func TestCollector_NilSideIsUntouched(t *testing.T) {
	t.Parallel()

	collector := store.NewCollector()
	repo := model.Repository{Name: "api"}

	collector.Send(store.Batch{Repository: repo, Commits: []model.Commit{commitAt("a", 1)}})
	collector.Send(store.Batch{Repository: repo, PullRequests: []model.PullRequest{}})

	s := collector.Close()
	// Close is idempotent.
	assert.Same(t, s, collector.Close())

	assert.Len(t, s.RepositoryCommits(repo), 1)
	assert.Empty(t, s.RepositoryPullRequests(repo))
}
