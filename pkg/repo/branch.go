package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
)

// CreateBranch creates refs/heads/<name> pointing at target. It fails with
// ErrRefExists if the branch already exists.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	target, err := r.Store.PeelToCommit(target)
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	empty := object.Hash("")
	if err := r.updateRef("refs/heads/"+name, target, &empty, "branch: Created from "+target.Short()); err != nil {
		if errors.Is(err, ErrRefConflict) {
			return fmt.Errorf("create branch %q: %w", name, ErrRefExists)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. The current branch cannot be
// deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	if err := r.DeleteRef("refs/heads/" + name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	_ = r.updateConfig(func(cfg *Config) error {
		delete(cfg.Branches, name)
		return nil
	})
	return nil
}

// ListBranches returns local branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	return r.listShortRefs("refs/heads/")
}

// ListRemoteBranches returns "<remote>/<branch>" names sorted
// alphabetically, skipping remote HEAD symrefs.
func (r *Repo) ListRemoteBranches() ([]string, error) {
	names, err := r.listShortRefs("refs/remotes/")
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if !strings.HasSuffix(n, "/HEAD") {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *Repo) listShortRefs(prefix string) ([]string, error) {
	refs, err := r.ListRefs(prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for _, full := range refs {
		names = append(names, strings.TrimPrefix(full, prefix))
	}
	return names, nil
}

// SetUpstream records that branch tracks <remote>/<remoteBranch>.
func (r *Repo) SetUpstream(branch, remoteName, remoteBranch string) error {
	return r.updateConfig(func(cfg *Config) error {
		cfg.Branches[branch] = BranchConfig{Remote: remoteName, Merge: "refs/heads/" + remoteBranch}
		return nil
	})
}

// Upstream returns the remote and remote branch the given branch tracks.
// ok is false when no upstream is configured.
func (r *Repo) Upstream(branch string) (remoteName, remoteBranch string, ok bool, err error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", "", false, err
	}
	bc, found := cfg.Branches[branch]
	if !found || bc.Remote == "" || bc.Merge == "" {
		return "", "", false, nil
	}
	return bc.Remote, strings.TrimPrefix(bc.Merge, "refs/heads/"), true, nil
}
