package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
}

// Free releases the tree resources. Safe on a nil tree, which stands for the
// empty tree of a root commit.
func (t *Tree) Free() {
	if t != nil && t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

func (t *Tree) native() *git2go.Tree {
	if t == nil {
		return nil
	}

	return t.tree
}
