package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

const symrefPrefix = "ref: "

// refValue is the decoded content of one ref file.
type refValue struct {
	hash     object.Hash
	symbolic string // target ref name when the file is a symbolic ref
	raw      []byte
	exists   bool
}

func (r *Repo) readRef(name string) (refValue, error) {
	raw, err := r.FS.ReadFile(r.gitPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, vfs.ErrIsDir) {
			return refValue{}, nil
		}
		return refValue{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	v := refValue{raw: raw, exists: true}
	content := strings.TrimSpace(string(raw))
	if strings.HasPrefix(content, symrefPrefix) {
		v.symbolic = strings.TrimSpace(strings.TrimPrefix(content, symrefPrefix))
	} else {
		v.hash = object.Hash(content)
	}
	return v, nil
}

// Head returns the ref HEAD points at (e.g. "refs/heads/main"), or the
// commit id when HEAD is detached.
func (r *Repo) Head() (string, error) {
	v, err := r.readRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	if !v.exists {
		return "", fmt.Errorf("head: %w", ErrNotRepository)
	}
	if v.symbolic != "" {
		return v.symbolic, nil
	}
	return string(v.hash), nil
}

// CurrentBranch returns the short branch name HEAD points at, or "" when
// HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if name, ok := strings.CutPrefix(head, "refs/heads/"); ok {
		return name, nil
	}
	return "", nil
}

// SetHeadBranch points HEAD symbolically at refs/heads/<branch>.
func (r *Repo) SetHeadBranch(branch, reason string) error {
	return r.writeHead(symrefPrefix+"refs/heads/"+branch+"\n", reason)
}

// SetHeadDetached points HEAD directly at a commit.
func (r *Repo) SetHeadDetached(h object.Hash, reason string) error {
	return r.writeHead(string(h)+"\n", reason)
}

func (r *Repo) writeHead(content, reason string) error {
	old, _ := r.ResolveRef("HEAD")
	if err := r.FS.WriteFile(r.gitPath("HEAD"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	cur, _ := r.ResolveRef("HEAD")
	if err := r.appendReflog("HEAD", old, cur, reason); err != nil {
		return &RefUpdateReflogError{Ref: "HEAD", OldHash: old, NewHash: cur, Err: err}
	}
	return nil
}

// ResolveRef resolves a ref name to a commit or object id.
//
// HEAD follows at most one level of symbolic indirection and reports
// ErrUnborn when its target branch has no commits. Names under refs/ are
// read directly. Short names are looked up in refs/heads, refs/tags and
// refs/remotes; a name found in more than one namespace is ambiguous.
// Finally a full or abbreviated (at least four characters) object id is
// accepted.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("resolve ref: %w: empty name", ErrRefNotFound)
	}
	if name == "HEAD" || strings.HasPrefix(name, "refs/") {
		return r.resolveDirect(name)
	}

	var found []string
	var hash object.Hash
	for _, candidate := range []string{
		"refs/heads/" + name,
		"refs/tags/" + name,
		"refs/remotes/" + name,
		"refs/remotes/" + name + "/HEAD",
	} {
		h, err := r.resolveDirect(candidate)
		if errors.Is(err, ErrRefNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		found = append(found, candidate)
		hash = h
	}
	switch len(found) {
	case 1:
		return hash, nil
	case 0:
	default:
		return "", fmt.Errorf("resolve ref %q: %w: matches %s", name, ErrAmbiguousRef, strings.Join(found, ", "))
	}

	h, err := r.Store.ResolvePrefix(name)
	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, object.ErrAmbiguousHash):
		return "", fmt.Errorf("resolve ref %q: %w: %w", name, ErrAmbiguousRef, err)
	default:
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
	}
}

// resolveDirect reads a full ref name, following one symbolic level.
func (r *Repo) resolveDirect(name string) (object.Hash, error) {
	v, err := r.readRef(name)
	if err != nil {
		return "", err
	}
	if !v.exists {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
	}
	if v.symbolic == "" {
		return v.hash, nil
	}
	target, err := r.readRef(v.symbolic)
	if err != nil {
		return "", err
	}
	if !target.exists {
		return "", fmt.Errorf("resolve ref %q -> %q: %w", name, v.symbolic, ErrUnborn)
	}
	if target.symbolic != "" {
		return "", fmt.Errorf("resolve ref %q: %w: symbolic ref %q points at another symbolic ref", name, ErrRefNotFound, v.symbolic)
	}
	return target.hash, nil
}

// ResolveRevision resolves a ref name optionally followed by ~N, ^ or ^N
// parent selectors (e.g. "HEAD~2", "main^2") to a commit id.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	base, selectors := splitRevision(rev)
	h, err := r.ResolveRef(base)
	if err != nil {
		return "", err
	}
	if len(selectors) == 0 {
		return h, nil
	}
	if h, err = r.Store.PeelToCommit(h); err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	for _, sel := range selectors {
		for step := 0; step < sel.count; step++ {
			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return "", fmt.Errorf("resolve %q: %w", rev, err)
			}
			idx := 0
			if sel.caret {
				idx = sel.parent - 1
			}
			if idx < 0 {
				// ^0 names the commit itself.
				break
			}
			if idx >= len(c.Parents) {
				return "", fmt.Errorf("resolve %q: %w: commit %s has no parent %d", rev, ErrRefNotFound, h.Short(), idx+1)
			}
			h = c.Parents[idx]
		}
	}
	return h, nil
}

// ResolveCommit resolves a revision and peels annotated tags to a commit.
func (r *Repo) ResolveCommit(rev string) (object.Hash, error) {
	h, err := r.ResolveRevision(rev)
	if err != nil {
		return "", err
	}
	return r.Store.PeelToCommit(h)
}

type revSelector struct {
	caret  bool
	parent int // for ^N
	count  int // for ~N; 1 for carets
}

func splitRevision(rev string) (string, []revSelector) {
	i := strings.IndexAny(rev, "~^")
	if i <= 0 {
		return rev, nil
	}
	base, rest := rev[:i], rev[i:]
	var sels []revSelector
	for len(rest) > 0 {
		op := rest[0]
		rest = rest[1:]
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		n := 1
		if j > 0 {
			n, _ = strconv.Atoi(rest[:j])
		}
		rest = rest[j:]
		if op == '~' {
			sels = append(sels, revSelector{count: n})
		} else {
			sels = append(sels, revSelector{caret: true, parent: n, count: 1})
		}
	}
	return base, sels
}

// UpdateRef unconditionally points name at h.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.updateRef(name, h, nil, "update")
}

// UpdateRefCAS points name at h only if the ref currently holds
// expectedOld. An empty expectedOld requires the ref to be absent. Without
// expectedOld the update is unconditional. A lost race returns
// ErrRefConflict.
//
// The reflog entry is appended after the ref is updated; if that append
// fails the update stands and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	var want *object.Hash
	if len(expectedOld) == 1 {
		want = &expectedOld[0]
	}
	return r.updateRef(name, h, want, "update")
}

func (r *Repo) updateRef(name string, h object.Hash, expectedOld *object.Hash, reason string) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if !object.ValidateHash(string(h)) {
		return fmt.Errorf("update ref %q: invalid object id %q", name, h)
	}
	cur, err := r.readRef(name)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if cur.symbolic != "" {
		return fmt.Errorf("update ref %q: is a symbolic ref", name)
	}
	if expectedOld != nil && cur.hash != *expectedOld {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, ErrRefConflict, orUnborn(*expectedOld), orUnborn(cur.hash))
	}

	var old []byte
	if cur.exists {
		old = cur.raw
	}
	if err := r.FS.CompareAndSwap(r.gitPath(name), old, []byte(string(h)+"\n")); err != nil {
		if errors.Is(err, vfs.ErrCASMismatch) {
			return fmt.Errorf("update ref %q: %w", name, ErrRefConflict)
		}
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	r.logger.Debug("ref updated", "ref", name, "old", cur.hash.Short(), "new", h.Short(), "reason", reason)

	if err := r.appendReflog(name, cur.hash, h, reason); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: cur.hash, NewHash: h, Err: err}
	}
	if head, err := r.Head(); err == nil && head == name {
		if err := r.appendReflog("HEAD", cur.hash, h, reason); err != nil {
			return &RefUpdateReflogError{Ref: "HEAD", OldHash: cur.hash, NewHash: h, Err: err}
		}
	}
	return nil
}

// DeleteRef removes a ref, optionally only if it still holds expectedOld.
func (r *Repo) DeleteRef(name string, expectedOld ...object.Hash) error {
	cur, err := r.readRef(name)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	if !cur.exists {
		return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
	}
	if len(expectedOld) == 1 && cur.hash != expectedOld[0] {
		return fmt.Errorf("delete ref %q: %w", name, ErrRefConflict)
	}
	if err := r.FS.CompareAndSwap(r.gitPath(name), cur.raw, nil); err != nil {
		if errors.Is(err, vfs.ErrCASMismatch) {
			return fmt.Errorf("delete ref %q: %w", name, ErrRefConflict)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	_ = r.FS.RemoveAll(r.gitPath("logs/" + name))
	return nil
}

// ListRefs returns the full names of refs below prefix (e.g. "refs/heads/"),
// sorted lexicographically. Symbolic refs are included.
func (r *Repo) ListRefs(prefix string) ([]string, error) {
	var names []string
	root := r.gitPath("refs")
	err := r.FS.Walk(root, func(p string, info vfs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := vfs.Rel(r.GitDir, p)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// ListRefHashes resolves every ref below prefix. Unborn symbolic refs are
// skipped.
func (r *Repo) ListRefHashes(prefix string) (map[string]object.Hash, error) {
	names, err := r.ListRefs(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]object.Hash, len(names))
	for _, name := range names {
		h, err := r.resolveDirect(name)
		if errors.Is(err, ErrUnborn) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = h
	}
	return out, nil
}

func orUnborn(h object.Hash) string {
	if h == "" {
		return "(none)"
	}
	return string(h)
}

// ValidateBranchName checks a short branch name against the usual ref
// naming rules.
func ValidateBranchName(name string) error {
	if name == "HEAD" || strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: %q", ErrInvalidRefName, name)
	}
	return validateRefName("refs/heads/" + name)
}

func validateRefName(name string) error {
	if name == "HEAD" {
		return nil
	}
	bad := name == "" ||
		!strings.HasPrefix(name, "refs/") ||
		strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".") ||
		strings.HasSuffix(name, ".lock") ||
		strings.Contains(name, "..") ||
		strings.Contains(name, "//") ||
		strings.Contains(name, "@{") ||
		strings.Contains(name, "/.") ||
		strings.ContainsAny(name, " ~^:?*[\\\x7f")
	if !bad {
		for _, c := range name {
			if c < 0x20 {
				bad = true
				break
			}
		}
	}
	if bad {
		return fmt.Errorf("%w: %q", ErrInvalidRefName, name)
	}
	return nil
}
