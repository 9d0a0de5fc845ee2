package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/sandgit/pkg/object"
)

// FileStatus is the state of one path relative to another snapshot.
type FileStatus int

const (
	StatusUnmodified FileStatus = iota
	StatusModified
	StatusAdded
	StatusDeleted
	StatusUntracked
	StatusStaged
)

func (s FileStatus) String() string {
	switch s {
	case StatusUnmodified:
		return "unmodified"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	case StatusStaged:
		return "staged"
	default:
		return "unknown"
	}
}

// StatusEntry records the status of a single path. IndexStatus compares
// the index to HEAD, WorkStatus the worktree to the index, and Status is
// the combined classification shown to users.
type StatusEntry struct {
	Path        string
	HeadHash    object.Hash
	IndexHash   object.Hash
	WorkHash    object.Hash
	IndexStatus FileStatus
	WorkStatus  FileStatus
	Status      FileStatus
	Conflicted  bool
}

// Status returns the paths whose combined status is not unmodified,
// sorted by path.
func (r *Repo) Status() ([]StatusEntry, error) {
	all, err := r.StatusAll()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.Status != StatusUnmodified {
			out = append(out, e)
		}
	}
	return out, nil
}

// StatusAll classifies every path present in HEAD, the index or the
// worktree. Worktree content is always hashed, so the result never
// depends on modification times.
func (r *Repo) StatusAll() ([]StatusEntry, error) {
	head, _, err := r.headFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	work, err := r.worktreeFiles(".", r.ignoreChecker())
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	paths := make(map[string]struct{}, len(head)+len(stg.Entries)+len(work))
	for p := range head {
		paths[p] = struct{}{}
	}
	for p := range stg.Entries {
		paths[p] = struct{}{}
	}
	for _, p := range work {
		paths[p] = struct{}{}
	}

	out := make([]StatusEntry, 0, len(paths))
	for p := range paths {
		e := StatusEntry{Path: p}
		hf, inHead := head[p]
		se, inIndex := stg.Entries[p]
		if inHead {
			e.HeadHash = hf.Hash
		}
		if inIndex {
			e.IndexHash = se.BlobHash
			e.Conflicted = se.Conflict
		}
		wh, wmode, inWork, err := r.worktreeHash(p)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		e.WorkHash = wh

		switch {
		case inIndex && !inHead:
			e.IndexStatus = StatusAdded
		case !inIndex && inHead:
			e.IndexStatus = StatusDeleted
		case inIndex && inHead && (se.BlobHash != hf.Hash || normalizeFileMode(se.Mode) != normalizeFileMode(hf.Mode)):
			e.IndexStatus = StatusModified
		}

		switch {
		case inWork && !inIndex:
			e.WorkStatus = StatusUntracked
		case !inWork && inIndex:
			e.WorkStatus = StatusDeleted
		case inWork && inIndex && (e.Conflicted || wh != se.BlobHash || wmode != normalizeFileMode(se.Mode)):
			e.WorkStatus = StatusModified
		}

		e.Status = combinedStatus(e)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func combinedStatus(e StatusEntry) FileStatus {
	switch {
	case e.Conflicted || e.WorkStatus == StatusModified:
		return StatusModified
	case e.WorkStatus == StatusDeleted:
		return StatusDeleted
	case e.IndexStatus == StatusAdded:
		return StatusAdded
	case e.IndexStatus == StatusModified:
		return StatusStaged
	case e.IndexStatus == StatusDeleted:
		return StatusDeleted
	case e.WorkStatus == StatusUntracked:
		return StatusUntracked
	default:
		return StatusUnmodified
	}
}

// hasTrackedChanges reports whether the index or worktree differ from HEAD
// for any tracked path. Untracked files do not count.
func hasTrackedChanges(entries []StatusEntry) bool {
	for _, e := range entries {
		if e.Status != StatusUnmodified && e.Status != StatusUntracked {
			return true
		}
	}
	return false
}
