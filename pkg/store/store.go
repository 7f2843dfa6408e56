// Package store holds the fetched commits and pull requests of every repository.
package store

import (
	"iter"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// Store indexes commits and pull requests by repository. It has no behavior beyond
// insertion; it is read-only once aggregation starts.
type Store struct {
	order        []model.Repository
	commits      map[string][]model.Commit
	pullRequests map[string][]model.PullRequest
}

// New creates an empty store.
func New() *Store {
	return &Store{
		commits:      make(map[string][]model.Commit),
		pullRequests: make(map[string][]model.PullRequest),
	}
}

// InsertCommits replaces the commits of repo.
func (s *Store) InsertCommits(repo model.Repository, commits []model.Commit) {
	s.track(repo)
	s.commits[repo.Key()] = commits
}

// InsertPullRequests replaces the pull requests of repo.
func (s *Store) InsertPullRequests(repo model.Repository, pullRequests []model.PullRequest) {
	s.track(repo)
	s.pullRequests[repo.Key()] = pullRequests
}

func (s *Store) track(repo model.Repository) {
	for i, known := range s.order {
		if known.Key() == repo.Key() {
			s.order[i] = repo

			return
		}
	}

	s.order = append(s.order, repo)
}

// Repositories returns the repositories in first-insertion order.
func (s *Store) Repositories() []model.Repository {
	return append([]model.Repository(nil), s.order...)
}

// RepositoryCommits returns the commits stored for repo, in source order.
func (s *Store) RepositoryCommits(repo model.Repository) []model.Commit {
	return s.commits[repo.Key()]
}

// RepositoryPullRequests returns the pull requests stored for repo, in source order.
func (s *Store) RepositoryPullRequests(repo model.Repository) []model.PullRequest {
	return s.pullRequests[repo.Key()]
}

// Commits yields every stored commit across all repositories.
func (s *Store) Commits() iter.Seq[*model.Commit] {
	return func(yield func(*model.Commit) bool) {
		for _, repo := range s.order {
			commits := s.commits[repo.Key()]
			for i := range commits {
				if !yield(&commits[i]) {
					return
				}
			}
		}
	}
}

// PullRequests yields every stored pull request across all repositories.
func (s *Store) PullRequests() iter.Seq[*model.PullRequest] {
	return func(yield func(*model.PullRequest) bool) {
		for _, repo := range s.order {
			pullRequests := s.pullRequests[repo.Key()]
			for i := range pullRequests {
				if !yield(&pullRequests[i]) {
					return
				}
			}
		}
	}
}

// Counts returns the total number of stored commits and pull requests.
func (s *Store) Counts() (commits, pullRequests int) {
	for _, c := range s.commits {
		commits += len(c)
	}

	for _, p := range s.pullRequests {
		pullRequests += len(p)
	}

	return commits, pullRequests
}
