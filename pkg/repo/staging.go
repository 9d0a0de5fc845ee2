package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// StagingEntry records the staged state of a single file. Conflicted
// entries carry the three merge sides instead of a resolved blob.
type StagingEntry struct {
	Path       string      `json:"path"`
	BlobHash   object.Hash `json:"blob_hash,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	ModTime    int64       `json:"mod_time"`
	Size       int64       `json:"size"`
	Conflict   bool        `json:"conflict,omitempty"`
	BaseHash   object.Hash `json:"base_hash,omitempty"`
	OursHash   object.Hash `json:"ours_hash,omitempty"`
	TheirsHash object.Hash `json:"theirs_hash,omitempty"`
}

// Staging holds the full staging area (index).
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

func newStaging() *Staging {
	return &Staging{Entries: make(map[string]*StagingEntry)}
}

// Paths returns the staged paths in sorted order.
func (s *Staging) Paths() []string {
	out := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Conflicts returns the paths still marked conflicted, sorted.
func (s *Staging) Conflicts() []string {
	var out []string
	for p, e := range s.Entries {
		if e.Conflict {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// ReadStaging loads .git/index. A missing index is empty.
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := r.FS.ReadFile(r.gitPath("index"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newStaging(), nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}
	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging persists the staging area to .git/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if err := r.FS.WriteFile(r.gitPath("index"), data, 0o644); err != nil {
		return fmt.Errorf("write staging: %w", err)
	}
	return nil
}

// Add stages the given paths. Directories (including "." for the whole
// worktree) are added recursively, skipping ignored files, and tracked files
// that no longer exist below them are unstaged. A named file missing from
// the worktree is removed from the index.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	ic := r.ignoreChecker()

	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		abs := r.workPath(rel)
		info, statErr := r.FS.Stat(abs)
		switch {
		case statErr == nil && info.IsDir():
			files, err := r.worktreeFiles(rel, ic)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			for _, f := range files {
				if err := r.stageFile(stg, f); err != nil {
					return fmt.Errorf("add: %w", err)
				}
			}
			onDisk := make(map[string]struct{}, len(files))
			for _, f := range files {
				onDisk[f] = struct{}{}
			}
			for staged := range stg.Entries {
				if _, ok := onDisk[staged]; ok || !underPath(staged, rel) {
					continue
				}
				if !r.FS.Exists(r.workPath(staged)) {
					delete(stg.Entries, staged)
				}
			}
		case statErr == nil:
			if err := r.stageFile(stg, rel); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		case errors.Is(statErr, fs.ErrNotExist):
			removed := false
			for staged := range stg.Entries {
				if underPath(staged, rel) {
					delete(stg.Entries, staged)
					removed = true
				}
			}
			if !removed {
				return fmt.Errorf("add %q: %w", p, ErrPathspec)
			}
		default:
			return fmt.Errorf("add: stat %q: %w", rel, statErr)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// stageFile writes the worktree content of rel as a blob and records it.
func (r *Repo) stageFile(stg *Staging, rel string) error {
	abs := r.workPath(rel)
	content, err := r.FS.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %q: %w", rel, err)
	}
	info, err := r.FS.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %q: %w", rel, err)
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", rel, err)
	}
	stg.Entries[rel] = &StagingEntry{
		Path:     rel,
		BlobHash: h,
		Mode:     modeFromFileInfo(info),
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}
	return nil
}

// Remove unstages paths (files or directories) and, unless cached is set,
// deletes them from the worktree.
func (r *Repo) Remove(paths []string, cached bool) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		matched := false
		for _, staged := range stg.Paths() {
			if !underPath(staged, rel) {
				continue
			}
			matched = true
			delete(stg.Entries, staged)
			if !cached {
				if err := r.removeWorktreeFile(staged); err != nil {
					return fmt.Errorf("rm: %w", err)
				}
			}
		}
		if !matched {
			return fmt.Errorf("rm %q: %w", p, ErrPathspec)
		}
	}
	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	return nil
}

// repoRelPath converts a sandbox path (absolute, or relative to the
// worktree root) into a repo-relative path. "." names the whole worktree.
func (r *Repo) repoRelPath(p string) (string, error) {
	abs, err := vfs.Resolve(r.Root, strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	if !vfs.Within(r.Root, abs) {
		return "", fmt.Errorf("%q: %w", p, ErrOutsideRepository)
	}
	rel := vfs.Rel(r.Root, abs)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return "", fmt.Errorf("%q: %w", p, ErrOutsideRepository)
	}
	return rel, nil
}

// underPath reports whether rel equals dir or lies below it. "." matches
// everything.
func underPath(rel, dir string) bool {
	return dir == "." || rel == dir || strings.HasPrefix(rel, dir+"/")
}
