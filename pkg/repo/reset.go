package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
)

// Reset unstages paths by restoring their index entries to HEAD. A path
// absent from HEAD is dropped from the index. No paths resets the whole
// index. The worktree is never touched.
func (r *Repo) Reset(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	head, _, err := r.headFiles()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	targets, err := r.resetTargets(paths, stg, head)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for _, p := range targets {
		if f, ok := head[p]; ok {
			stg.Entries[p] = &StagingEntry{Path: p, BlobHash: f.Hash, Mode: normalizeFileMode(f.Mode), Size: -1}
			continue
		}
		delete(stg.Entries, p)
	}
	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (r *Repo) resetTargets(paths []string, stg *Staging, head map[string]object.TreeFile) ([]string, error) {
	all := make(map[string]struct{}, len(stg.Entries)+len(head))
	for p := range stg.Entries {
		all[p] = struct{}{}
	}
	for p := range head {
		all[p] = struct{}{}
	}
	if len(paths) == 0 {
		return sortedKeys(all), nil
	}

	targets := make(map[string]struct{})
	for _, raw := range paths {
		rel, err := r.repoRelPath(raw)
		if err != nil {
			return nil, err
		}
		matched := false
		for p := range all {
			if underPath(p, rel) {
				targets[p] = struct{}{}
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%q: %w", raw, ErrPathspec)
		}
	}
	return sortedKeys(targets), nil
}

// ResetMode selects how far ResetTo rewinds.
type ResetMode int

const (
	// ResetSoft moves the branch only.
	ResetSoft ResetMode = iota
	// ResetMixed also resets the index.
	ResetMixed
	// ResetHard also resets the worktree, discarding local changes.
	ResetHard
)

// ParseResetMode maps "soft", "mixed" or "hard" to a ResetMode.
func ParseResetMode(s string) (ResetMode, error) {
	switch strings.TrimPrefix(s, "--") {
	case "soft":
		return ResetSoft, nil
	case "mixed", "":
		return ResetMixed, nil
	case "hard":
		return ResetHard, nil
	}
	return 0, fmt.Errorf("unknown reset mode %q", s)
}

// ResetTo points the current branch (or detached HEAD) at rev. Any merge
// in progress is abandoned.
func (r *Repo) ResetTo(rev string, mode ResetMode) (object.Hash, error) {
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	old, err := r.ResolveRef("HEAD")
	if err != nil && !errors.Is(err, ErrUnborn) {
		return "", fmt.Errorf("reset: %w", err)
	}

	switch mode {
	case ResetHard:
		if err := r.switchTo(target, true); err != nil {
			return "", fmt.Errorf("reset: %w", err)
		}
	case ResetMixed:
		files, err := r.commitFiles(target)
		if err != nil {
			return "", fmt.Errorf("reset: %w", err)
		}
		if err := r.WriteStaging(r.stagingFromTree(files)); err != nil {
			return "", fmt.Errorf("reset: %w", err)
		}
	}
	if err := r.advanceHead(target, old, "reset: moving to "+rev); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	r.clearMergeState()
	return target, nil
}
