package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
)

// CheckoutOptions configures Checkout.
type CheckoutOptions struct {
	// Force discards local changes to tracked files and overwrites
	// untracked files that are in the way.
	Force bool
	// Create makes a new branch named by the target first, like
	// "checkout -b", starting at StartPoint (HEAD when empty).
	Create     bool
	StartPoint string
}

// Checkout switches HEAD, the index and the worktree to target.
//
// A local branch name makes HEAD symbolic. A name that matches exactly
// one remote-tracking branch creates a local branch tracking it. Any other
// revision detaches HEAD. Without Force the checkout refuses with
// ErrUncommittedChanges when tracked files differ from HEAD or an
// untracked file would be overwritten.
func (r *Repo) Checkout(target string, opts CheckoutOptions) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("checkout: %w: empty target", ErrRefNotFound)
	}
	if r.isMerging() && !opts.Force {
		return fmt.Errorf("checkout: %w", ErrMergeInProgress)
	}

	from, err := r.describeHead()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if opts.Create {
		return r.checkoutNewBranch(target, opts, from)
	}

	branch, commit, err := r.resolveCheckoutTarget(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.switchTo(commit, opts.Force); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	reason := "checkout: moving from " + from + " to " + target
	if branch != "" {
		return r.SetHeadBranch(branch, reason)
	}
	return r.SetHeadDetached(commit, reason)
}

func (r *Repo) checkoutNewBranch(name string, opts CheckoutOptions, from string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	start := opts.StartPoint
	if start == "" {
		start = "HEAD"
	}
	commit, err := r.ResolveCommit(start)
	if errors.Is(err, ErrUnborn) && opts.StartPoint == "" {
		// Nothing committed yet: only HEAD moves.
		if r.FS.Exists(r.gitPath("refs/heads/" + name)) {
			return fmt.Errorf("checkout: branch %q: %w", name, ErrRefExists)
		}
		return r.SetHeadBranch(name, "checkout: moving from "+from+" to "+name)
	}
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if r.FS.Exists(r.gitPath("refs/heads/" + name)) {
		return fmt.Errorf("checkout: branch %q: %w", name, ErrRefExists)
	}
	if err := r.switchTo(commit, opts.Force); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.CreateBranch(name, commit); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return r.SetHeadBranch(name, "checkout: moving from "+from+" to "+name)
}

// resolveCheckoutTarget returns the local branch to attach HEAD to (empty
// for a detached checkout) and the commit to check out.
func (r *Repo) resolveCheckoutTarget(target string) (string, object.Hash, error) {
	if h, err := r.resolveDirect("refs/heads/" + target); err == nil {
		return target, h, nil
	} else if !errors.Is(err, ErrRefNotFound) {
		return "", "", err
	}

	remotes, err := r.ListRefHashes("refs/remotes/")
	if err != nil {
		return "", "", err
	}
	var matches []string
	for ref := range remotes {
		rest := strings.TrimPrefix(ref, "refs/remotes/")
		if _, branch, ok := strings.Cut(rest, "/"); ok && branch == target {
			matches = append(matches, rest)
		}
	}
	if len(matches) == 1 && ValidateBranchName(target) == nil {
		remoteName, _, _ := strings.Cut(matches[0], "/")
		h := remotes["refs/remotes/"+matches[0]]
		if err := r.CreateBranch(target, h); err != nil {
			return "", "", err
		}
		if err := r.SetUpstream(target, remoteName, target); err != nil {
			return "", "", err
		}
		return target, h, nil
	}

	h, err := r.ResolveCommit(target)
	if err != nil {
		return "", "", err
	}
	return "", h, nil
}

// switchTo rewrites the worktree and index to commit's tree after the
// safety checks.
func (r *Repo) switchTo(commit object.Hash, force bool) error {
	to, err := r.commitFiles(commit)
	if err != nil {
		return err
	}
	head, _, err := r.headFiles()
	if err != nil {
		return err
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}

	if !force {
		if err := r.checkSwitchSafe(to); err != nil {
			return err
		}
	}

	from := make(map[string]object.TreeFile, len(head)+len(stg.Entries))
	for p, f := range head {
		from[p] = f
	}
	for p, e := range stg.Entries {
		from[p] = object.TreeFile{Path: p, Mode: e.Mode, Hash: e.BlobHash}
	}
	if err := r.switchWorktree(from, to); err != nil {
		return err
	}
	if force {
		r.clearMergeState()
	}
	return r.WriteStaging(r.stagingFromTree(to))
}

func (r *Repo) checkSwitchSafe(to map[string]object.TreeFile) error {
	entries, err := r.Status()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Status != StatusUntracked {
			return fmt.Errorf("%w: %s", ErrUncommittedChanges, e.Path)
		}
		if f, ok := to[e.Path]; ok && f.Hash != e.WorkHash {
			return fmt.Errorf("%w: untracked file %s would be overwritten", ErrUncommittedChanges, e.Path)
		}
	}
	return nil
}

// describeHead names HEAD for reflog messages: the branch, or the short id
// when detached.
func (r *Repo) describeHead() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if name, ok := strings.CutPrefix(head, "refs/heads/"); ok {
		return name, nil
	}
	return object.Hash(head).Short(), nil
}

// RestorePaths overwrites worktree files with their staged content, like
// "checkout -- <paths>". Conflicted paths are restored to our side.
func (r *Repo) RestorePaths(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		matched := false
		for _, staged := range stg.Paths() {
			if !underPath(staged, rel) {
				continue
			}
			matched = true
			e := stg.Entries[staged]
			h := e.BlobHash
			if e.Conflict {
				h = e.OursHash
			}
			if h == "" {
				continue
			}
			if err := r.writeWorktreeFile(staged, h, e.Mode); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		}
		if !matched {
			return fmt.Errorf("restore %q: %w", p, ErrPathspec)
		}
	}
	return nil
}
