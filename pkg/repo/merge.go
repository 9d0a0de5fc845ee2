package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/diff3"
	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/object"
)

// MergeResult is the outcome of Merge.
type MergeResult struct {
	MergedTree  object.Hash
	Conflicts   []string
	FastForward bool
	UpToDate    bool
	// Commit is the new HEAD commit: the fast-forward target or the
	// merge commit. Empty when the merge stopped on conflicts.
	Commit object.Hash
	Base   object.Hash
}

// Merge merges the named branch or revision into HEAD.
//
// If HEAD already contains it nothing changes. If HEAD is an ancestor the
// branch fast-forwards. Otherwise a three-way merge runs: a clean result
// is committed with two parents; conflicts leave marker-carrying files in
// the worktree, conflicted index entries and MERGE_HEAD, and the result is
// returned together with a *MergeConflictError.
func (r *Repo) Merge(ctx context.Context, name string) (*MergeResult, error) {
	if r.isMerging() {
		return nil, fmt.Errorf("merge: %w", ErrMergeInProgress)
	}
	theirs, err := r.ResolveCommit(name)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	entries, err := r.Status()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if hasTrackedChanges(entries) {
		return nil, fmt.Errorf("merge: %w", ErrUncommittedChanges)
	}

	ours, err := r.ResolveRef("HEAD")
	if errors.Is(err, ErrUnborn) {
		return r.fastForward(name, "", theirs)
	}
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if ours == theirs {
		return &MergeResult{UpToDate: true, Commit: ours, Base: ours}, nil
	}

	base, err := merge.FindMergeBase(ctx, r.Store, ours, theirs, r.mergeLimit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res, err := merge.ThreeWay(ctx, r.Store, base, ours, theirs, merge.Options{
		Limit:  r.mergeLimit,
		Labels: diff3.Labels{Ours: "HEAD", Theirs: name},
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case res.UpToDate:
		return &MergeResult{MergedTree: res.MergedTree, UpToDate: true, Commit: ours, Base: base}, nil
	case res.FastForward:
		out, err := r.fastForward(name, ours, theirs)
		if out != nil {
			out.Base = base
		}
		return out, err
	}

	merged, err := r.Store.FlattenTreeMap(res.MergedTree)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.checkSwitchSafe(merged); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	head, err := r.commitFiles(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.switchWorktree(head, merged); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	stg := r.stagingFromTree(merged)
	for _, f := range res.Files {
		if !f.Conflict {
			continue
		}
		e := stg.Entries[f.Path]
		if e == nil {
			continue
		}
		e.Conflict = true
		e.BaseHash = f.Base
		e.OursHash = f.Ours
		e.TheirsHash = f.Theirs
	}
	if err := r.WriteStaging(stg); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	out := &MergeResult{MergedTree: res.MergedTree, Conflicts: res.Conflicts, Base: base}
	message := fmt.Sprintf("Merge branch '%s'", name)
	if res.HasConflicts() {
		if err := r.FS.WriteFile(r.gitPath("MERGE_HEAD"), []byte(string(theirs)+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("merge: write MERGE_HEAD: %w", err)
		}
		msg := message + "\n\nConflicts:\n\t" + strings.Join(res.Conflicts, "\n\t") + "\n"
		if err := r.FS.WriteFile(r.gitPath("MERGE_MSG"), []byte(msg), 0o644); err != nil {
			return nil, fmt.Errorf("merge: write MERGE_MSG: %w", err)
		}
		r.logger.Debug("merge stopped on conflicts", "theirs", theirs.Short(), "conflicts", len(res.Conflicts))
		return out, &MergeConflictError{Paths: res.Conflicts}
	}

	author, err := r.commitAuthor("")
	if errors.Is(err, ErrIdentityUnknown) {
		author = r.reflogIdentity()
	} else if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	now := r.now()
	h, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:       res.MergedTree,
		Parents:        []object.Hash{ours, theirs},
		Author:         author,
		Timestamp:      now.Unix(),
		AuthorTimezone: formatTimezoneOffset(now),
		Message:        message + "\n",
	})
	if err != nil {
		return nil, fmt.Errorf("merge: write commit: %w", err)
	}
	if err := r.advanceHead(h, ours, "merge "+name+": Merge made by the 'three-way' strategy."); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	out.Commit = h
	return out, nil
}

func (r *Repo) fastForward(name string, ours, theirs object.Hash) (*MergeResult, error) {
	if err := r.switchTo(theirs, false); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.advanceHead(theirs, ours, "merge "+name+": Fast-forward"); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	c, err := r.Store.ReadCommit(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &MergeResult{MergedTree: c.TreeHash, FastForward: true, Commit: theirs, Base: ours}, nil
}

// AbortMerge discards an in-progress merge, restoring the index and
// worktree to HEAD.
func (r *Repo) AbortMerge() error {
	if !r.isMerging() {
		return fmt.Errorf("merge --abort: %w", ErrNoMergeInProgress)
	}
	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	}
	if err := r.switchTo(head, true); err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	}
	r.clearMergeState()
	return nil
}
