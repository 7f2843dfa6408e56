package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// DiffStats summarizes a tree-to-tree diff.
type DiffStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// Stats returns the files changed, insertions and deletions of the diff.
func (d *Diff) Stats() (DiffStats, error) {
	stats, err := d.diff.Stats()
	if err != nil {
		return DiffStats{}, fmt.Errorf("diff stats: %w", err)
	}
	defer stats.Free() //nolint:errcheck // Free only reports a nil receiver.

	return DiffStats{
		FilesChanged: stats.FilesChanged(),
		Insertions:   stats.Insertions(),
		Deletions:    stats.Deletions(),
	}, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff != nil {
		d.diff.Free() //nolint:errcheck,gosec // nothing to recover from a failed free.
		d.diff = nil
	}
}

// diffOptions mirrors `git diff --patience` including typechanges.
func diffOptions() (git2go.DiffOptions, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return opts, fmt.Errorf("get diff options: %w", err)
	}

	opts.Flags |= git2go.DiffPatience | git2go.DiffIncludeTypeChange

	return opts, nil
}

// findOptions enables rename detection.
func findOptions() (git2go.DiffFindOptions, error) {
	opts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return opts, fmt.Errorf("get diff find options: %w", err)
	}

	opts.Flags |= git2go.DiffFindRenames

	return opts, nil
}
