// Package repo implements repository-level version control verbs (init,
// add, commit, branch, checkout, merge, log, fetch, pull, push) over a
// sandboxed virtual filesystem.
package repo

import (
	"log/slog"
	"strings"
	"time"

	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// DefaultBranch is the branch HEAD points at after Init unless overridden.
const DefaultBranch = "main"

// Repo is an opened repository: a worktree root plus its .git directory,
// both living inside the same virtual filesystem.
type Repo struct {
	FS     *vfs.FS
	Root   string // worktree root, sandbox-absolute
	GitDir string // Root + "/.git"
	Store  *object.Store

	logger     *slog.Logger
	mergeLimit merge.Limit
	now        func() time.Time
	identity   string
}

// Options configures Init and Open.
type Options struct {
	DefaultBranch string
	Logger        *slog.Logger
	Clock         func() time.Time
	MergeLimit    merge.Limit
	// Identity ("Name <email>") authors commits when the repository
	// config has no user.name and user.email.
	Identity string
}

func newRepo(fsys *vfs.FS, root string, opts Options) *Repo {
	gitDir := vfs.Join(root, ".git")
	r := &Repo{
		FS:         fsys,
		Root:       root,
		GitDir:     gitDir,
		Store:      object.NewStore(fsys, gitDir),
		logger:     opts.Logger,
		mergeLimit: opts.MergeLimit,
		now:        opts.Clock,
		identity:   strings.TrimSpace(opts.Identity),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// gitPath returns the sandbox path of a file below .git.
func (r *Repo) gitPath(name string) string {
	return r.GitDir + "/" + strings.TrimPrefix(name, "/")
}

// workPath returns the sandbox path of a repo-relative worktree path.
func (r *Repo) workPath(rel string) string {
	if rel == "" || rel == "." {
		return r.Root
	}
	return vfs.Join(r.Root, rel)
}

// State is the coarse lifecycle state of a repository.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateClean
	StateDirty
	StateMerging
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateMerging:
		return "merging"
	default:
		return "unknown"
	}
}

// State reports the repository's lifecycle state, computed fresh from
// HEAD, the index and the worktree.
func (r *Repo) State() (State, error) {
	if r.isMerging() {
		return StateMerging, nil
	}
	entries, err := r.Status()
	if err != nil {
		return StateUninitialized, err
	}
	if len(entries) > 0 {
		return StateDirty, nil
	}
	if _, err := r.ResolveRef("HEAD"); err != nil {
		return StateInitialized, nil
	}
	return StateClean, nil
}

// StateAt reports the state of the repository containing dir, returning
// StateUninitialized when there is none.
func StateAt(fsys *vfs.FS, dir string) (State, error) {
	r, err := Open(fsys, dir, Options{})
	if err != nil {
		return StateUninitialized, nil
	}
	return r.State()
}
