package repo

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/odvcencio/sandgit/pkg/bytestore"
	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

const testRoot = "/project"

// tickingClock returns a clock that advances one second per call so
// consecutive commits get distinct timestamps.
func tickingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	return newTestRepoOn(t, vfs.New(bytestore.NewMemStore()), testRoot)
}

func newTestRepoOn(t *testing.T, fsys *vfs.FS, root string) *Repo {
	t.Helper()
	r, err := Init(fsys, root, Options{Clock: tickingClock()})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.SetConfig("user.name", "Test User"); err != nil {
		t.Fatalf("SetConfig(user.name): %v", err)
	}
	if err := r.SetConfig("user.email", "test@example.com"); err != nil {
		t.Fatalf("SetConfig(user.email): %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	if err := r.FS.WriteFile(r.workPath(rel), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", rel, err)
	}
}

func readFile(t *testing.T, r *Repo, rel string) string {
	t.Helper()
	data, err := r.FS.ReadFile(r.workPath(rel))
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", rel, err)
	}
	return string(data)
}

// commitAll stages the whole worktree and commits it.
func commitAll(t *testing.T, r *Repo, msg string) object.Hash {
	t.Helper()
	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add(.): %v", err)
	}
	h, err := r.Commit(CommitOptions{Message: msg})
	if err != nil {
		t.Fatalf("Commit(%q): %v", msg, err)
	}
	return h
}

func mustResolve(t *testing.T, r *Repo, name string) object.Hash {
	t.Helper()
	h, err := r.ResolveRef(name)
	if err != nil {
		t.Fatalf("ResolveRef(%s): %v", name, err)
	}
	return h
}

func statusMap(t *testing.T, r *Repo) map[string]FileStatus {
	t.Helper()
	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	out := make(map[string]FileStatus, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Status
	}
	return out
}
