package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/diff"
	"github.com/odvcencio/sandgit/pkg/object"
)

// DiffOptions configures Diff.
type DiffOptions struct {
	// Cached compares HEAD with the index instead of the index with the
	// worktree.
	Cached bool
	// Paths restricts output to files at or below these paths.
	Paths []string
}

// Diff renders unified diffs between HEAD and the index (Cached) or between
// the index and the worktree. Untracked files are not shown.
func (r *Repo) Diff(ctx context.Context, opts DiffOptions) (string, error) {
	filter, err := r.pathFilter(opts.Paths)
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	index := stagingFiles(stg)

	var b strings.Builder
	if opts.Cached {
		head, _, err := r.headFiles()
		if err != nil {
			return "", fmt.Errorf("diff: %w", err)
		}
		for _, c := range diff.Snapshots(head, index) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if !filter(c.Path) {
				continue
			}
			old, cur, err := diff.BlobPair(r.Store, c)
			if err != nil {
				return "", fmt.Errorf("diff %s: %w", c.Path, err)
			}
			b.WriteString(diff.Unified(c, old, cur))
		}
		return b.String(), nil
	}

	for _, p := range sortedKeys(index) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !filter(p) {
			continue
		}
		f := index[p]
		h, mode, ok, err := r.worktreeHash(p)
		if err != nil {
			return "", fmt.Errorf("diff: %w", err)
		}
		c := diff.FileChange{Path: p, Status: diff.Modified, OldHash: f.Hash, OldMode: f.Mode, NewHash: h, NewMode: mode}
		if !ok {
			c.Status, c.NewHash, c.NewMode = diff.Deleted, "", ""
		} else if h == f.Hash && mode == f.Mode {
			continue
		}
		old, err := r.blobData(f.Hash)
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", p, err)
		}
		var cur []byte
		if ok {
			if cur, err = r.FS.ReadFile(r.workPath(p)); err != nil {
				return "", fmt.Errorf("diff %s: %w", p, err)
			}
		}
		b.WriteString(diff.Unified(c, old, cur))
	}
	return b.String(), nil
}

// ShowCommit renders a commit header followed by its diff against the
// first parent.
func (r *Repo) ShowCommit(ctx context.Context, rev string) (string, error) {
	if rev == "" {
		rev = "HEAD"
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("show: %w", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return "", fmt.Errorf("show: %w", err)
	}
	var b strings.Builder
	WriteCommitHeader(&b, h, c)
	b.WriteString("\n")

	var parentTree object.Hash
	if len(c.Parents) > 0 {
		pc, err := r.Store.ReadCommit(c.Parents[0])
		if err != nil {
			return "", fmt.Errorf("show: %w", err)
		}
		parentTree = pc.TreeHash
	}
	changes, err := diff.Trees(r.Store, parentTree, c.TreeHash)
	if err != nil {
		return "", fmt.Errorf("show: %w", err)
	}
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		old, cur, err := diff.BlobPair(r.Store, ch)
		if err != nil {
			return "", fmt.Errorf("show %s: %w", ch.Path, err)
		}
		b.WriteString(diff.Unified(ch, old, cur))
	}
	return b.String(), nil
}

func (r *Repo) blobData(h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	b, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// pathFilter returns a predicate matching repo-relative paths at or below
// any of paths. No paths matches everything.
func (r *Repo) pathFilter(paths []string) (func(string) bool, error) {
	if len(paths) == 0 {
		return func(string) bool { return true }, nil
	}
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return func(p string) bool {
		for _, rel := range rels {
			if underPath(p, rel) {
				return true
			}
		}
		return false
	}, nil
}
