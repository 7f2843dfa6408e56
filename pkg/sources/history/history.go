// Package history reads the commit history of a tracked repository from a
// local copy that it keeps in sync with the remote.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/sprintstats/pkg/gitlib"
	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// SyncAction tells how the local copy was brought up to date.
type SyncAction string

// Sync actions.
const (
	ActionCloned SyncAction = "cloned"
	ActionPulled SyncAction = "pulled"
)

// Result is what Fetch read from one repository.
type Result struct {
	Action SyncAction
	Merge  gitlib.MergeResult
	// Head is the commit the history was read from.
	Head    string
	Commits []model.Commit
}

// Reader keeps local copies under a cache directory, one sub-directory per repository.
type Reader struct {
	cacheDir string
	logger   *slog.Logger
}

// NewReader creates a reader rooted at cacheDir.
func NewReader(cacheDir string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{cacheDir: cacheDir, logger: logger}
}

// Path returns the location of the local copy of repo.
func (r *Reader) Path(repo model.Repository) string {
	return filepath.Join(r.cacheDir, repo.Name)
}

// Fetch syncs the local copy of repo and returns every commit reachable from
// its head whose timestamp is at or after since, newest first.
func (r *Reader) Fetch(
	ctx context.Context, repo model.Repository, since time.Time, progress gitlib.ProgressFunc,
) (Result, error) {
	local, result, err := r.sync(ctx, repo, progress)
	if err != nil {
		return Result{}, err
	}
	defer local.Free()

	head, err := local.Head()
	if err != nil {
		return Result{}, fmt.Errorf("read head of %s: %w", repo.Name, err)
	}

	commits, err := ReadCommits(ctx, local, since)
	if err != nil {
		return Result{}, fmt.Errorf("read history of %s: %w", repo.Name, err)
	}

	result.Head = head.String()
	result.Commits = commits

	r.logger.InfoContext(ctx, "history read",
		"repository", repo.Name, "action", result.Action, "merge", result.Merge.String(),
		"head", result.Head, "commits", len(commits))

	return result, nil
}

func (r *Reader) sync(
	ctx context.Context, repo model.Repository, progress gitlib.ProgressFunc,
) (*gitlib.Repository, Result, error) {
	path := r.Path(repo)

	exists, err := gitlib.Exists(path)
	if err != nil {
		return nil, Result{}, err
	}

	if !exists {
		r.logger.DebugContext(ctx, "cloning", "repository", repo.Name, "url", repo.SSH, "branch", repo.Branch)

		local, cloneErr := gitlib.Clone(ctx, repo.SSH, path, repo.Branch, progress)
		if cloneErr != nil {
			return nil, Result{}, cloneErr
		}

		return local, Result{Action: ActionCloned}, nil
	}

	local, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, Result{}, err
	}

	r.logger.DebugContext(ctx, "pulling", "repository", repo.Name, "branch", repo.Branch)

	merge, err := local.Pull(ctx, repo.Branch, progress)
	if err != nil {
		local.Free()

		return nil, Result{}, fmt.Errorf("pull %s: %w", repo.Name, err)
	}

	if merge == gitlib.MergeConflicted {
		r.logger.WarnContext(ctx, "merge left conflicts, reading history from local head", "repository", repo.Name)
	}

	return local, Result{Action: ActionPulled, Merge: merge}, nil
}

// ReadCommits walks repo from HEAD and converts every commit at or after since,
// with its diff stats against the first parent.
func ReadCommits(ctx context.Context, repo *gitlib.Repository, since time.Time) ([]model.Commit, error) {
	iter, err := repo.Log(since)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []model.Commit

	err = iter.ForEach(func(c *gitlib.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		stats, statsErr := c.Stats()
		if statsErr != nil {
			return fmt.Errorf("stats of %s: %w", c.Hash(), statsErr)
		}

		commits = append(commits, model.Commit{
			Hash:         c.Hash().String(),
			Email:        c.Author().Email,
			Message:      c.Message(),
			FilesChanged: stats.FilesChanged,
			Insertions:   stats.Insertions,
			Deletions:    stats.Deletions,
			When:         c.Committer().When.UTC(),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}
