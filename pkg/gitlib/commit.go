package gitlib

import (
	"errors"
	"fmt"
	"io"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/sprintstats/pkg/safeconv"
)

// ErrParentNotFound is returned when the requested parent commit is not found.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	return signatureFrom(c.commit.Author())
}

// Committer returns the commit committer.
func (c *Commit) Committer() Signature {
	return signatureFrom(c.commit.Committer())
}

// Message returns the commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return safeconv.MustUintToInt(c.commit.ParentCount())
}

// Parent returns the nth parent commit.
func (c *Commit) Parent(n uint) (*Commit, error) {
	parent := c.commit.Parent(n)
	if parent == nil {
		return nil, ErrParentNotFound
	}

	return &Commit{commit: parent, repo: c.repo}, nil
}

// Tree returns the tree associated with this commit.
func (c *Commit) Tree() (*Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}

	return &Tree{tree: tree}, nil
}

// parentTree returns the tree of the first parent, or nil for a root commit.
func (c *Commit) parentTree() (*Tree, error) {
	if c.NumParents() == 0 {
		return nil, nil //nolint:nilnil // nil tree is the empty tree.
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	defer parent.Free()

	return parent.Tree()
}

// Stats computes the diff stats of the commit against its first parent, or
// against the empty tree for a root commit. Renames are detected so a moved
// file is not counted as a deletion plus an addition.
func (c *Commit) Stats() (DiffStats, error) {
	tree, err := c.Tree()
	if err != nil {
		return DiffStats{}, err
	}
	defer tree.Free()

	parent, err := c.parentTree()
	if err != nil {
		return DiffStats{}, err
	}
	defer parent.Free()

	diff, err := c.repo.DiffTreeToTree(parent, tree)
	if err != nil {
		return DiffStats{}, err
	}
	defer diff.Free()

	return diff.Stats()
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// CommitIter iterates over the commits reachable from HEAD, newest first.
type CommitIter struct {
	walk  *git2go.RevWalk
	repo  *Repository
	since time.Time
}

// Next returns the next commit whose committer time is not before the lower
// bound of the iterator. It returns io.EOF when the walk is exhausted.
func (ci *CommitIter) Next() (*Commit, error) {
	for {
		oid := new(git2go.Oid)

		err := ci.walk.Next(oid)
		if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
			return nil, io.EOF
		}

		if err != nil {
			return nil, fmt.Errorf("revwalk next: %w", err)
		}

		commit, err := ci.repo.LookupCommit(HashFromOid(oid))
		if err != nil {
			return nil, err
		}

		// Time ordering is not strict across merged branches, so older commits
		// are skipped rather than ending the walk.
		if commit.Committer().When.Before(ci.since) {
			commit.Free()

			continue
		}

		return commit, nil
	}
}

// ForEach calls the callback for each commit and frees it afterwards.
func (ci *CommitIter) ForEach(cb func(*Commit) error) error {
	for {
		commit, err := ci.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		cbErr := cb(commit)
		commit.Free()

		if cbErr != nil {
			return cbErr
		}
	}
}

// Close releases resources.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
