package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/odvcencio/sandgit/pkg/object"
)

// CommitOptions configures Commit.
type CommitOptions struct {
	Message string
	// Author is a "Name <email>" identity; empty uses user.name and
	// user.email from the repository config.
	Author string
	// All stages every tracked file's worktree content first, like
	// "commit -a". Untracked files are not added.
	All    bool
	Signer object.Signer
	// When overrides the commit timestamp.
	When time.Time
}

// Commit records the index as a new commit on the current branch (or the
// detached HEAD) and returns its id.
//
// Without a merge in progress the index must differ from HEAD's tree. With
// one, unresolved conflicts fail with *MergeConflictError and the commit
// gets MERGE_HEAD as its second parent. The ref is advanced by CAS against
// the parent, so a concurrent commit yields ErrRefConflict.
func (r *Repo) Commit(opts CommitOptions) (object.Hash, error) {
	author, err := r.commitAuthor(opts.Author)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if opts.All {
		if err := r.stageTracked(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if conflicts := stg.Conflicts(); len(conflicts) > 0 {
		return "", &MergeConflictError{Paths: conflicts}
	}

	head, headHash, err := r.headFiles()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	mergeHead, merging, err := r.mergeHead()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	index := stagingFiles(stg)
	if !merging && sameSnapshot(head, index) {
		return "", ErrNothingToCommit
	}

	message := strings.TrimSpace(opts.Message)
	if message == "" && merging {
		if raw, err := r.FS.ReadFile(r.gitPath("MERGE_MSG")); err == nil {
			message = strings.TrimSpace(string(raw))
		}
	}
	if message == "" {
		return "", fmt.Errorf("commit: empty commit message")
	}

	tree, err := r.writeIndexTree(index)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	var parents []object.Hash
	if headHash != "" {
		parents = append(parents, headHash)
	}
	if merging {
		parents = append(parents, mergeHead)
	}

	when := opts.When
	if when.IsZero() {
		when = r.now()
	}
	c := &object.CommitObj{
		TreeHash:       tree,
		Parents:        parents,
		Author:         author,
		Timestamp:      when.Unix(),
		AuthorTimezone: formatTimezoneOffset(when),
		Message:        message + "\n",
	}
	if opts.Signer != nil {
		sig, err := opts.Signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		c.Signature = sig
	}
	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	reason := "commit: " + oneLine(message)
	switch {
	case merging:
		reason = "commit (merge): " + oneLine(message)
	case headHash == "":
		reason = "commit (initial): " + oneLine(message)
	}
	if err := r.advanceHead(h, headHash, reason); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if merging {
		r.clearMergeState()
	}
	r.logger.Debug("commit created", "commit", h.Short(), "parents", len(parents))
	return h, nil
}

// advanceHead moves the branch HEAD points at (or HEAD itself when
// detached) from old to h.
func (r *Repo) advanceHead(h, old object.Hash, reason string) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if strings.HasPrefix(head, "refs/") {
		return r.updateRef(head, h, &old, reason)
	}
	return r.updateRef("HEAD", h, &old, reason)
}

func (r *Repo) commitAuthor(explicit string) (string, error) {
	if s := strings.TrimSpace(explicit); s != "" {
		return s, nil
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		if r.identity != "" {
			return r.identity, nil
		}
		return "", ErrIdentityUnknown
	}
	return FormatIdentity(cfg.User.Name, cfg.User.Email), nil
}

// stageTracked re-stages every indexed path from the worktree, dropping
// the ones deleted there.
func (r *Repo) stageTracked() error {
	stg, err := r.ReadStaging()
	if err != nil {
		return err
	}
	for _, p := range stg.Paths() {
		if stg.Entries[p].Conflict {
			continue
		}
		if !r.FS.Exists(r.workPath(p)) {
			delete(stg.Entries, p)
			continue
		}
		if err := r.stageFile(stg, p); err != nil {
			return err
		}
	}
	return r.WriteStaging(stg)
}

func (r *Repo) writeIndexTree(files map[string]object.TreeFile) (object.Hash, error) {
	list := make([]object.TreeFile, 0, len(files))
	for _, p := range sortedKeys(files) {
		list = append(list, files[p])
	}
	tree, err := r.Store.WriteTreeFromFiles(list)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return tree, nil
}

func sameSnapshot(a, b map[string]object.TreeFile) bool {
	if len(a) != len(b) {
		return false
	}
	for p, fa := range a {
		fb, ok := b[p]
		if !ok || fa.Hash != fb.Hash || normalizeFileMode(fa.Mode) != normalizeFileMode(fb.Mode) {
			return false
		}
	}
	return true
}

// mergeHead reads MERGE_HEAD.
func (r *Repo) mergeHead() (object.Hash, bool, error) {
	raw, err := r.FS.ReadFile(r.gitPath("MERGE_HEAD"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	h, err := object.ParseHash(strings.TrimSpace(string(raw)))
	if err != nil {
		return "", false, fmt.Errorf("MERGE_HEAD: %w", err)
	}
	return h, true, nil
}

func (r *Repo) isMerging() bool {
	_, ok, _ := r.mergeHead()
	return ok
}

func (r *Repo) clearMergeState() {
	for _, name := range []string{"MERGE_HEAD", "MERGE_MSG"} {
		_ = r.FS.Remove(r.gitPath(name))
	}
}

func formatTimezoneOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d%02d", sign, offset/3600, (offset%3600)/60)
}
