package repo

import (
	"errors"
	"testing"
)

func TestStatusClassification(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "keep.txt", "same\n")
	writeFile(t, r, "edit.txt", "v1\n")
	writeFile(t, r, "staged.txt", "v1\n")
	writeFile(t, r, "delete.txt", "x\n")
	commitAll(t, r, "base")

	writeFile(t, r, "edit.txt", "v2\n")
	writeFile(t, r, "staged.txt", "v2\n")
	if err := r.Add([]string{"staged.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	writeFile(t, r, "added.txt", "new\n")
	if err := r.Add([]string{"added.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	writeFile(t, r, "untracked.txt", "?\n")
	if err := r.FS.Remove(r.workPath("delete.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got := statusMap(t, r)
	want := map[string]FileStatus{
		"edit.txt":      StatusModified,
		"staged.txt":    StatusStaged,
		"added.txt":     StatusAdded,
		"untracked.txt": StatusUntracked,
		"delete.txt":    StatusDeleted,
	}
	if len(got) != len(want) {
		t.Fatalf("status = %v, want %v", got, want)
	}
	for p, s := range want {
		if got[p] != s {
			t.Errorf("%s: status %s, want %s", p, got[p], s)
		}
	}
}

func TestStatusAllIncludesUnmodified(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1\n")
	commitAll(t, r, "base")

	all, err := r.StatusAll()
	if err != nil {
		t.Fatalf("StatusAll: %v", err)
	}
	if len(all) != 1 || all[0].Path != "a.txt" || all[0].Status != StatusUnmodified {
		t.Fatalf("StatusAll = %+v", all)
	}
	e := all[0]
	if e.HeadHash == "" || e.HeadHash != e.IndexHash || e.IndexHash != e.WorkHash {
		t.Fatalf("hashes head=%s index=%s work=%s, want all equal", e.HeadHash, e.IndexHash, e.WorkHash)
	}
}

func TestStatusSameSizeEditDetected(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "aaaa")
	commitAll(t, r, "base")
	writeFile(t, r, "a.txt", "bbbb")

	if got := statusMap(t, r)["a.txt"]; got != StatusModified {
		t.Fatalf("a.txt status = %s, want modified", got)
	}
}

func TestStatusSkipsIgnored(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, ".gitignore", "*.log\nbuild/\n")
	writeFile(t, r, "debug.log", "noise\n")
	writeFile(t, r, "build/out.bin", "bin\n")
	writeFile(t, r, "main.go", "package main\n")

	got := statusMap(t, r)
	if _, ok := got["debug.log"]; ok {
		t.Error("ignored debug.log reported")
	}
	if _, ok := got["build/out.bin"]; ok {
		t.Error("ignored build/out.bin reported")
	}
	if got["main.go"] != StatusUntracked || got[".gitignore"] != StatusUntracked {
		t.Fatalf("status = %v", got)
	}
}

func TestAddRemoveReset(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1\n")
	writeFile(t, r, "dir/b.txt", "2\n")
	commitAll(t, r, "base")

	if err := r.Add([]string{"missing.txt"}); !errors.Is(err, ErrPathspec) {
		t.Fatalf("Add(missing) err = %v, want ErrPathspec", err)
	}

	// rm --cached keeps the file in the worktree.
	if err := r.Remove([]string{"dir"}, true); err != nil {
		t.Fatalf("Remove(dir, cached): %v", err)
	}
	if !r.FS.Exists(r.workPath("dir/b.txt")) {
		t.Fatal("rm --cached deleted the worktree file")
	}
	got := statusMap(t, r)
	if got["dir/b.txt"] != StatusDeleted {
		t.Fatalf("dir/b.txt status = %s, want deleted (staged removal)", got["dir/b.txt"])
	}

	if err := r.Reset([]string{"dir/b.txt"}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := statusMap(t, r); len(got) != 0 {
		t.Fatalf("status after reset = %v, want clean", got)
	}

	if err := r.Remove([]string{"a.txt"}, false); err != nil {
		t.Fatalf("Remove(a.txt): %v", err)
	}
	if r.FS.Exists(r.workPath("a.txt")) {
		t.Fatal("rm left a.txt in the worktree")
	}
	if err := r.Remove([]string{"nope"}, false); !errors.Is(err, ErrPathspec) {
		t.Fatalf("Remove(nope) err = %v, want ErrPathspec", err)
	}
}

func TestAddRejectsPathsOutsideRepository(t *testing.T) {
	r := newTestRepo(t)
	for _, p := range []string{"/etc/passwd", ".git/HEAD", "../other"} {
		if err := r.Add([]string{p}); !errors.Is(err, ErrOutsideRepository) {
			t.Errorf("Add(%q) err = %v, want ErrOutsideRepository", p, err)
		}
	}
}

func TestAddDirectoryDropsDeletedFiles(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "src/a.go", "a\n")
	writeFile(t, r, "src/b.go", "b\n")
	commitAll(t, r, "base")

	if err := r.FS.Remove(r.workPath("src/b.go")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Add([]string{"src"}); err != nil {
		t.Fatalf("Add(src): %v", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["src/b.go"]; ok {
		t.Fatal("deleted src/b.go still staged")
	}
	if _, ok := stg.Entries["src/a.go"]; !ok {
		t.Fatal("src/a.go dropped from index")
	}
}
