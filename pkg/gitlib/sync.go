package gitlib

import (
	"context"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/sprintstats/pkg/safeconv"
)

// originRemote is the remote that clones create and pulls fetch from.
const originRemote = "origin"

// ProgressFunc receives the network transfer progress as a percentage.
type ProgressFunc func(percent int)

// MergeResult tells what a pull did to the local branch.
type MergeResult int

// Pull outcomes.
const (
	// MergeUpToDate means the remote had nothing new.
	MergeUpToDate MergeResult = iota
	// MergeFastForward means the branch moved to the fetched commit.
	MergeFastForward
	// MergeCommitted means local and remote diverged and a merge commit was created.
	MergeCommitted
	// MergeConflicted means the merge stopped with conflicts checked out in the work tree.
	MergeConflicted
)

// String returns a short description of the merge result.
func (m MergeResult) String() string {
	switch m {
	case MergeUpToDate:
		return "up to date"
	case MergeFastForward:
		return "fast-forward"
	case MergeCommitted:
		return "merged"
	case MergeConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// Clone clones branch of url into path.
func Clone(ctx context.Context, url, path, branch string, progress ProgressFunc) (*Repository, error) {
	repo, err := git2go.Clone(url, path, &git2go.CloneOptions{
		FetchOptions:   fetchOptions(ctx, progress),
		CheckoutBranch: branch,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Pull brings branch up to date with origin: hard reset of the work tree to the
// local branch, fetch, then fast-forward or merge of FETCH_HEAD.
func (r *Repository) Pull(ctx context.Context, branch string, progress ProgressFunc) (MergeResult, error) {
	err := r.resetHard(branch)
	if err != nil {
		return MergeUpToDate, err
	}

	remote, err := r.repo.Remotes.Lookup(originRemote)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("lookup remote %s: %w", originRemote, err)
	}
	defer remote.Free()

	opts := fetchOptions(ctx, progress)

	err = remote.Fetch([]string{branch}, &opts, "")
	if err != nil {
		return MergeUpToDate, fmt.Errorf("fetch %s: %w", branch, err)
	}

	fetchHead, err := r.repo.References.Lookup("FETCH_HEAD")
	if err != nil {
		return MergeUpToDate, fmt.Errorf("lookup FETCH_HEAD: %w", err)
	}
	defer fetchHead.Free()

	fetched, err := r.repo.AnnotatedCommitFromRef(fetchHead)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("annotate FETCH_HEAD: %w", err)
	}
	defer fetched.Free()

	return r.merge(branch, fetched)
}

func (r *Repository) resetHard(branch string) error {
	obj, err := r.repo.RevparseSingle(branch)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", branch, err)
	}
	defer obj.Free()

	commit, err := obj.AsCommit()
	if err != nil {
		return fmt.Errorf("resolve %s: %w", branch, err)
	}
	defer commit.Free()

	err = r.repo.ResetToCommit(commit, git2go.ResetHard, &git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	if err != nil {
		return fmt.Errorf("reset to %s: %w", branch, err)
	}

	return nil
}

func (r *Repository) merge(branch string, fetched *git2go.AnnotatedCommit) (MergeResult, error) {
	analysis, _, err := r.repo.MergeAnalysis([]*git2go.AnnotatedCommit{fetched})
	if err != nil {
		return MergeUpToDate, fmt.Errorf("merge analysis: %w", err)
	}

	switch {
	case analysis&git2go.MergeAnalysisUpToDate != 0:
		return MergeUpToDate, nil
	case analysis&git2go.MergeAnalysisFastForward != 0:
		return MergeFastForward, r.fastForward(branch, fetched.Id())
	case analysis&git2go.MergeAnalysisNormal != 0:
		return r.normalMerge(fetched.Id())
	default:
		return MergeUpToDate, nil
	}
}

func (r *Repository) fastForward(branch string, target *git2go.Oid) error {
	refName := "refs/heads/" + branch
	msg := fmt.Sprintf("Fast-Forward: Setting %s to id: %s", refName, target)

	ref, err := r.repo.References.Lookup(refName)
	if err != nil {
		ref, err = r.repo.References.Create(refName, target, true, msg)
		if err != nil {
			return fmt.Errorf("create %s: %w", refName, err)
		}
	} else {
		moved, setErr := ref.SetTarget(target, msg)
		ref.Free()

		if setErr != nil {
			return fmt.Errorf("move %s: %w", refName, setErr)
		}

		ref = moved
	}
	defer ref.Free()

	err = r.repo.SetHead(refName)
	if err != nil {
		return fmt.Errorf("set HEAD to %s: %w", refName, err)
	}

	err = r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	if err != nil {
		return fmt.Errorf("checkout HEAD: %w", err)
	}

	return nil
}

func (r *Repository) normalMerge(theirs *git2go.Oid) (MergeResult, error) {
	head, err := r.repo.Head()
	if err != nil {
		return MergeUpToDate, fmt.Errorf("get HEAD: %w", err)
	}
	defer head.Free()

	ours := head.Target()

	localCommit, localTree, err := r.commitTree(ours)
	if err != nil {
		return MergeUpToDate, err
	}
	defer localCommit.Free()
	defer localTree.Free()

	remoteCommit, remoteTree, err := r.commitTree(theirs)
	if err != nil {
		return MergeUpToDate, err
	}
	defer remoteCommit.Free()
	defer remoteTree.Free()

	base, err := r.repo.MergeBase(ours, theirs)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("merge base: %w", err)
	}

	baseCommit, baseTree, err := r.commitTree(base)
	if err != nil {
		return MergeUpToDate, err
	}
	defer baseCommit.Free()
	defer baseTree.Free()

	idx, err := r.repo.MergeTrees(baseTree, localTree, remoteTree, nil)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("merge trees: %w", err)
	}
	defer idx.Free()

	if idx.HasConflicts() {
		err = r.repo.CheckoutIndex(idx, &git2go.CheckoutOptions{
			Strategy: git2go.CheckoutSafe | git2go.CheckoutAllowConflicts | git2go.CheckoutConflictStyleMerge,
		})
		if err != nil {
			return MergeConflicted, fmt.Errorf("checkout conflicts: %w", err)
		}

		return MergeConflicted, nil
	}

	treeID, err := idx.WriteTreeTo(r.repo)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("write merge tree: %w", err)
	}

	tree, err := r.repo.LookupTree(treeID)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("lookup merge tree: %w", err)
	}
	defer tree.Free()

	sig, err := r.repo.DefaultSignature()
	if err != nil {
		return MergeUpToDate, fmt.Errorf("default signature: %w", err)
	}

	msg := fmt.Sprintf("Merge: %s into %s", theirs, ours)

	_, err = r.repo.CreateCommit("HEAD", sig, sig, msg, tree, localCommit, remoteCommit)
	if err != nil {
		return MergeUpToDate, fmt.Errorf("commit merge: %w", err)
	}

	err = r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe})
	if err != nil {
		return MergeCommitted, fmt.Errorf("checkout HEAD: %w", err)
	}

	return MergeCommitted, nil
}

func (r *Repository) commitTree(oid *git2go.Oid) (*git2go.Commit, *git2go.Tree, error) {
	commit, err := r.repo.LookupCommit(oid)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup commit %s: %w", oid, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		commit.Free()

		return nil, nil, fmt.Errorf("get commit tree %s: %w", oid, err)
	}

	return commit, tree, nil
}

// fetchOptions wires credentials and progress reporting. Cancelling ctx aborts
// the transfer at the next progress callback.
func fetchOptions(ctx context.Context, progress ProgressFunc) git2go.FetchOptions {
	return git2go.FetchOptions{
		RemoteCallbacks: git2go.RemoteCallbacks{
			CredentialsCallback: credentials,
			TransferProgressCallback: func(stats git2go.TransferProgress) error {
				if err := ctx.Err(); err != nil {
					return err
				}

				if progress != nil {
					progress(safeconv.Percent(stats.ReceivedObjects, stats.TotalObjects))
				}

				return nil
			},
		},
	}
}

// credentials answers libgit2 authentication requests: keys from ssh-agent
// for ssh remotes, the platform default otherwise.
func credentials(url, usernameFromURL string, allowed git2go.CredentialType) (*git2go.Credential, error) {
	if allowed&git2go.CredentialTypeSSHKey != 0 {
		username := usernameFromURL
		if username == "" {
			username = sshUser(url)
		}

		cred, err := git2go.NewCredentialSSHKeyFromAgent(username)
		if err != nil {
			return nil, fmt.Errorf("ssh-agent credentials: %w", err)
		}

		return cred, nil
	}

	cred, err := git2go.NewCredentialDefault()
	if err != nil {
		return nil, fmt.Errorf("default credentials: %w", err)
	}

	return cred, nil
}

// sshUser extracts the user of an scp-like url such as git@host:org/repo.git.
func sshUser(url string) string {
	user, _, found := strings.Cut(strings.TrimPrefix(url, "ssh://"), "@")
	if !found || strings.ContainsAny(user, "/:") {
		return "git"
	}

	return user
}
