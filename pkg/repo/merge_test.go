package repo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// divergent commits f.txt on main, then edits line one differently on
// main and on feature.
func divergent(t *testing.T, mainLine, featureLine string) *Repo {
	t.Helper()
	r := newTestRepo(t)
	writeFile(t, r, "f.txt", "line1\nline2\nline3\n")
	writeFile(t, r, "other.txt", "shared\n")
	commitAll(t, r, "base")
	if err := r.Checkout("feature", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b feature: %v", err)
	}
	writeFile(t, r, "f.txt", featureLine+"\nline2\nline3\n")
	commitAll(t, r, "feature edit")
	if err := r.Checkout("main", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	writeFile(t, r, "f.txt", mainLine+"\nline2\nline3\n")
	commitAll(t, r, "main edit")
	return r
}

func TestMergeConflict(t *testing.T) {
	r := divergent(t, "main side", "feature side")
	mainTip := mustResolve(t, r, "main")
	featureTip := mustResolve(t, r, "feature")

	res, err := r.Merge(context.Background(), "feature")
	var conflictErr *MergeConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("Merge err = %v, want *MergeConflictError", err)
	}
	if res == nil {
		t.Fatal("Merge returned nil result with conflicts")
	}
	if want := []string{"f.txt"}; !reflect.DeepEqual(res.Conflicts, want) {
		t.Fatalf("Conflicts = %v, want %v", res.Conflicts, want)
	}
	if res.FastForward {
		t.Fatal("conflicting merge reported fast-forward")
	}
	if !reflect.DeepEqual(conflictErr.Paths, res.Conflicts) {
		t.Fatalf("error paths = %v", conflictErr.Paths)
	}

	content := readFile(t, r, "f.txt")
	for _, marker := range []string{"<<<<<<< HEAD\n", "main side\n", "=======\n", "feature side\n", ">>>>>>> feature\n"} {
		if !strings.Contains(content, marker) {
			t.Errorf("f.txt missing %q:\n%s", marker, content)
		}
	}
	if state, err := r.State(); err != nil || state != StateMerging {
		t.Fatalf("State = %v err=%v, want merging", state, err)
	}
	if got := mustResolve(t, r, "main"); got != mainTip {
		t.Fatalf("conflicting merge moved main to %s", got)
	}

	if _, err := r.Commit(CommitOptions{Message: "too early"}); !errors.As(err, &conflictErr) {
		t.Fatalf("Commit with conflicts err = %v, want *MergeConflictError", err)
	}
	if _, err := r.Merge(context.Background(), "feature"); !errors.Is(err, ErrMergeInProgress) {
		t.Fatalf("second Merge err = %v, want ErrMergeInProgress", err)
	}

	writeFile(t, r, "f.txt", "resolved\nline2\nline3\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h, err := r.Commit(CommitOptions{})
	if err != nil {
		t.Fatalf("Commit resolution: %v", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != mainTip || c.Parents[1] != featureTip {
		t.Fatalf("merge commit parents = %v, want [%s %s]", c.Parents, mainTip, featureTip)
	}
	if !strings.HasPrefix(c.Message, "Merge branch 'feature'") {
		t.Fatalf("merge commit message = %q", c.Message)
	}
	if state, _ := r.State(); state != StateClean {
		t.Fatalf("State after resolution = %v, want clean", state)
	}
}

func TestMergeFileReplacedByDirectory(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a", "v1\n")
	commitAll(t, r, "base")
	if err := r.Checkout("feature", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b feature: %v", err)
	}
	if err := r.Remove([]string{"a"}, false); err != nil {
		t.Fatalf("Remove(a): %v", err)
	}
	writeFile(t, r, "a/b", "nested\n")
	commitAll(t, r, "a becomes a directory")
	if err := r.Checkout("main", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	writeFile(t, r, "a", "v2\n")
	commitAll(t, r, "edit a")

	res, err := r.Merge(context.Background(), "feature")
	var conflictErr *MergeConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("Merge err = %v, want *MergeConflictError", err)
	}
	if want := []string{"a~HEAD"}; !reflect.DeepEqual(res.Conflicts, want) {
		t.Fatalf("Conflicts = %v, want %v", res.Conflicts, want)
	}
	if got := readFile(t, r, "a/b"); got != "nested\n" {
		t.Fatalf("a/b = %q", got)
	}
	if got := readFile(t, r, "a~HEAD"); !strings.Contains(got, "v2\n") || !strings.HasPrefix(got, "<<<<<<< HEAD\n") {
		t.Fatalf("a~HEAD = %q", got)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if e := stg.Entries["a~HEAD"]; e == nil || !e.Conflict {
		t.Fatalf("index entry for a~HEAD = %+v, want conflicted", e)
	}
}

func TestMergeAbort(t *testing.T) {
	r := divergent(t, "ours", "theirs")
	if _, err := r.Merge(context.Background(), "feature"); err == nil {
		t.Fatal("expected conflict")
	}
	if err := r.AbortMerge(); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}
	if got := readFile(t, r, "f.txt"); got != "ours\nline2\nline3\n" {
		t.Fatalf("f.txt after abort = %q", got)
	}
	if state, _ := r.State(); state != StateClean {
		t.Fatalf("State after abort = %v, want clean", state)
	}
	if err := r.AbortMerge(); !errors.Is(err, ErrNoMergeInProgress) {
		t.Fatalf("second AbortMerge err = %v, want ErrNoMergeInProgress", err)
	}
}

func TestMergeCleanThreeWay(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "f.txt", "one\ntwo\nthree\nfour\nfive\n")
	commitAll(t, r, "base")
	if err := r.Checkout("feature", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b: %v", err)
	}
	writeFile(t, r, "f.txt", "one\ntwo\nthree\nfour\nFIVE\n")
	writeFile(t, r, "feature.txt", "new\n")
	featureTip := commitAll(t, r, "feature edit")
	if err := r.Checkout("main", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	writeFile(t, r, "f.txt", "ONE\ntwo\nthree\nfour\nfive\n")
	mainTip := commitAll(t, r, "main edit")

	res, err := r.Merge(context.Background(), "feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.FastForward || res.UpToDate || len(res.Conflicts) != 0 {
		t.Fatalf("Merge result = %+v", res)
	}
	if got := readFile(t, r, "f.txt"); got != "ONE\ntwo\nthree\nfour\nFIVE\n" {
		t.Fatalf("merged f.txt = %q", got)
	}
	if got := readFile(t, r, "feature.txt"); got != "new\n" {
		t.Fatalf("feature.txt = %q", got)
	}
	c, err := r.Store.ReadCommit(res.Commit)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != mainTip || c.Parents[1] != featureTip {
		t.Fatalf("parents = %v", c.Parents)
	}
	if got := mustResolve(t, r, "main"); got != res.Commit {
		t.Fatalf("main = %s, want merge commit %s", got, res.Commit)
	}
	if got := statusMap(t, r); len(got) != 0 {
		t.Fatalf("status after merge = %v", got)
	}
}

func TestMergeFastForwardAndUpToDate(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1\n")
	base := commitAll(t, r, "base")
	if err := r.Checkout("feature", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b: %v", err)
	}
	writeFile(t, r, "a.txt", "2\n")
	tip := commitAll(t, r, "ahead")
	if err := r.Checkout("main", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}

	res, err := r.Merge(context.Background(), "feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.FastForward || res.Commit != tip {
		t.Fatalf("Merge = %+v, want fast-forward to %s", res, tip)
	}
	if got := readFile(t, r, "a.txt"); got != "2\n" {
		t.Fatalf("a.txt = %q", got)
	}

	res, err = r.Merge(context.Background(), string(base))
	if err != nil {
		t.Fatalf("Merge(ancestor): %v", err)
	}
	if !res.UpToDate || res.Commit != tip {
		t.Fatalf("Merge(ancestor) = %+v, want up to date", res)
	}
	res, err = r.Merge(context.Background(), "feature")
	if err != nil || !res.UpToDate {
		t.Fatalf("Merge(self) = %+v err=%v", res, err)
	}
}

func TestMergeRefusesDirtyWorktree(t *testing.T) {
	r := divergent(t, "a", "b")
	writeFile(t, r, "other.txt", "dirty\n")
	if _, err := r.Merge(context.Background(), "feature"); !errors.Is(err, ErrUncommittedChanges) {
		t.Fatalf("Merge err = %v, want ErrUncommittedChanges", err)
	}
}
