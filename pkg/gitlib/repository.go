package gitlib

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Exists reports whether something is present at path, the test used to pick
// between cloning and pulling.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("stat %s: %w", path, err)
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash, err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// Log returns an iterator over the commits reachable from HEAD whose committer
// time is at or after since.
func (r *Repository) Log(since time.Time) (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	err = walk.PushHead()
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime)

	return &CommitIter{walk: walk, repo: r, since: since}, nil
}

// DiffTreeToTree computes the diff between two trees with patience diff and
// rename detection. A nil tree stands for the empty tree.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := diffOptions()
	if err != nil {
		return nil, err
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.native(), newTree.native(), &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	find, err := findOptions()
	if err != nil {
		diff.Free() //nolint:errcheck,gosec // already failing.

		return nil, err
	}

	err = diff.FindSimilar(&find)
	if err != nil {
		diff.Free() //nolint:errcheck,gosec // already failing.

		return nil, fmt.Errorf("find renames: %w", err)
	}

	return &Diff{diff: diff}, nil
}
