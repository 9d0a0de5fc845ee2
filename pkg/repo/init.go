package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/sandgit/pkg/vfs"
)

var (
	ErrAlreadyInitialized = errors.New("repository already exists")
	ErrNotRepository      = errors.New("not a git repository (or any of the parent directories)")
)

// Init creates a new repository whose worktree is root. It lays out
// .git/{HEAD,objects,refs/heads,refs/tags,logs} and points HEAD at the
// default branch, which stays unborn until the first commit.
func Init(fsys *vfs.FS, root string, opts Options) (*Repo, error) {
	root, err := vfs.Clean(root)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	branch := opts.DefaultBranch
	if branch == "" {
		branch = DefaultBranch
	}
	if err := ValidateBranchName(branch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r := newRepo(fsys, root, opts)
	if fsys.Exists(r.GitDir) {
		return nil, fmt.Errorf("init: %s: %w", r.GitDir, ErrAlreadyInitialized)
	}

	for _, d := range []string{"objects", "refs/heads", "refs/tags", "logs"} {
		if err := fsys.MkdirAll(r.gitPath(d)); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	if err := fsys.WriteFile(r.gitPath("HEAD"), []byte("ref: refs/heads/"+branch+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	cfg := &Config{Core: CoreConfig{DefaultBranch: branch}}
	if err := r.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r.logger.Debug("repository initialized", "root", root, "branch", branch)
	return r, nil
}

// Open searches upward from dir for a .git directory and opens the
// repository that owns it.
func Open(fsys *vfs.FS, dir string, opts Options) (*Repo, error) {
	cur, err := vfs.Clean(dir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	for {
		if fsys.IsDir(vfs.Join(cur, ".git")) {
			return newRepo(fsys, cur, opts), nil
		}
		if cur == "/" {
			return nil, fmt.Errorf("open %s: %w", dir, ErrNotRepository)
		}
		cur = vfs.Dir(cur)
	}
}
