package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

func modeFromFileInfo(info vfs.FileInfo) string {
	if info.IsExecutable() {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func normalizeFileMode(mode string) string {
	if mode == object.TreeModeExecutable {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

func filePermFromMode(mode string) fs.FileMode {
	if normalizeFileMode(mode) == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}

// worktreeFiles lists repo-relative file paths below rel, skipping .git and
// ignored paths, sorted.
func (r *Repo) worktreeFiles(rel string, ic *IgnoreChecker) ([]string, error) {
	var out []string
	err := r.FS.Walk(r.workPath(rel), func(p string, info vfs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if p == r.Root {
			return nil
		}
		path := vfs.Rel(r.Root, p)
		if ic.IsIgnored(path, info.IsDir()) {
			if info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk worktree: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// worktreeHash hashes the worktree content of rel. ok is false when the
// file does not exist.
func (r *Repo) worktreeHash(rel string) (h object.Hash, mode string, ok bool, err error) {
	abs := r.workPath(rel)
	info, err := r.FS.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	if info.IsDir() {
		return "", "", false, nil
	}
	data, err := r.FS.ReadFile(abs)
	if err != nil {
		return "", "", false, err
	}
	return object.HashObject(object.TypeBlob, data), modeFromFileInfo(info), true, nil
}

func (r *Repo) writeWorktreeFile(rel string, h object.Hash, mode string) error {
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", rel, err)
	}
	abs := r.workPath(rel)
	if r.FS.IsDir(abs) {
		if err := r.FS.RemoveAll(abs); err != nil {
			return fmt.Errorf("replace directory %q: %w", rel, err)
		}
	}
	if err := r.FS.WriteFile(abs, blob.Data, filePermFromMode(mode)); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}

// removeWorktreeFile deletes rel and prunes directories it leaves empty,
// never removing the worktree root.
func (r *Repo) removeWorktreeFile(rel string) error {
	abs := r.workPath(rel)
	if err := r.FS.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", rel, err)
	}
	for dir := vfs.Dir(abs); dir != r.Root && vfs.Within(r.Root, dir); dir = vfs.Dir(dir) {
		entries, err := r.FS.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := r.FS.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// switchWorktree moves the worktree from one snapshot to another: paths in
// from but not in to are removed, and paths whose content differs are
// rewritten.
func (r *Repo) switchWorktree(from, to map[string]object.TreeFile) error {
	for _, p := range sortedKeys(from) {
		if _, keep := to[p]; keep {
			continue
		}
		if err := r.removeWorktreeFile(p); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(to) {
		f := to[p]
		h, mode, ok, err := r.worktreeHash(p)
		if err != nil {
			return err
		}
		if ok && h == f.Hash && mode == normalizeFileMode(f.Mode) {
			continue
		}
		if err := r.writeWorktreeFile(p, f.Hash, f.Mode); err != nil {
			return err
		}
	}
	return nil
}

// stagingFromTree builds an index that exactly matches a flattened tree.
func (r *Repo) stagingFromTree(files map[string]object.TreeFile) *Staging {
	stg := newStaging()
	for p, f := range files {
		e := &StagingEntry{Path: p, BlobHash: f.Hash, Mode: normalizeFileMode(f.Mode), Size: -1}
		if info, err := r.FS.Stat(r.workPath(p)); err == nil {
			e.ModTime = info.ModTime().UnixNano()
			e.Size = info.Size()
		}
		stg.Entries[p] = e
	}
	return stg
}

// stagingFiles returns the resolved index entries as tree files.
func stagingFiles(stg *Staging) map[string]object.TreeFile {
	out := make(map[string]object.TreeFile, len(stg.Entries))
	for p, e := range stg.Entries {
		if e.Conflict {
			continue
		}
		out[p] = object.TreeFile{Path: p, Mode: normalizeFileMode(e.Mode), Hash: e.BlobHash}
	}
	return out
}

// headFiles flattens the tree of the commit HEAD resolves to. An unborn
// HEAD yields an empty map.
func (r *Repo) headFiles() (map[string]object.TreeFile, object.Hash, error) {
	head, err := r.ResolveRef("HEAD")
	if errors.Is(err, ErrUnborn) {
		return map[string]object.TreeFile{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	files, err := r.commitFiles(head)
	return files, head, err
}

func (r *Repo) commitFiles(h object.Hash) (map[string]object.TreeFile, error) {
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h.Short(), err)
	}
	return r.Store.FlattenTreeMap(c.TreeHash)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
