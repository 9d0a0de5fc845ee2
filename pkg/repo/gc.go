package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/odvcencio/sandgit/pkg/object"
)

// GCSummary reports what a prune kept and removed.
type GCSummary struct {
	Kept    int
	Removed int
}

// GC deletes objects that nothing references: not refs, HEAD, reflogs,
// MERGE_HEAD nor the index. Interrupted fetches and abandoned commits leave
// such objects behind.
func (r *Repo) GC(ctx context.Context) (*GCSummary, error) {
	roots, err := r.gcRoots()
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	live, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}
	all, err := r.Store.List()
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	sum := &GCSummary{}
	for _, h := range all {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("gc: %w", err)
		}
		if _, ok := live[h]; ok {
			sum.Kept++
			continue
		}
		if err := r.Store.Delete(h); err != nil {
			return sum, fmt.Errorf("gc: %w", err)
		}
		sum.Removed++
	}
	r.logger.Debug("gc complete", "kept", sum.Kept, "removed", sum.Removed)
	return sum, nil
}

func (r *Repo) gcRoots() ([]object.Hash, error) {
	rootSet := make(map[object.Hash]struct{})
	add := func(h object.Hash) {
		if !h.IsZero() {
			rootSet[h] = struct{}{}
		}
	}

	refs, err := r.ListRefHashes("refs/")
	if err != nil {
		return nil, err
	}
	logged := []string{"HEAD"}
	for name, h := range refs {
		add(h)
		logged = append(logged, name)
	}
	if h, err := r.ResolveRef("HEAD"); err == nil {
		add(h)
	}
	if h, ok, err := r.mergeHead(); err != nil {
		return nil, err
	} else if ok {
		add(h)
	}
	for _, name := range logged {
		entries, err := r.ReadReflog(name, 0)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			add(e.OldHash)
			add(e.NewHash)
		}
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}
	for _, e := range stg.Entries {
		add(e.BlobHash)
		add(e.BaseHash)
		add(e.OursHash)
		add(e.TheirsHash)
	}

	roots := make([]object.Hash, 0, len(rootSet))
	for h := range rootSet {
		roots = append(roots, h)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots, nil
}
