package repo

import (
	"errors"
	"testing"
)

// twoBranches commits a.txt on main and a diverging a.txt plus b.txt on
// feature, leaving main checked out.
func twoBranches(t *testing.T) *Repo {
	t.Helper()
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "main\n")
	commitAll(t, r, "base")
	if err := r.Checkout("feature", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b feature: %v", err)
	}
	writeFile(t, r, "a.txt", "feature\n")
	writeFile(t, r, "b.txt", "only on feature\n")
	commitAll(t, r, "feature work")
	if err := r.Checkout("main", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	return r
}

func TestCheckoutSwitchesWorktreeAndHead(t *testing.T) {
	r := twoBranches(t)
	if r.FS.Exists(r.workPath("b.txt")) {
		t.Fatal("b.txt present on main")
	}
	if err := r.Checkout("feature", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout feature: %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "feature\n" {
		t.Fatalf("a.txt = %q", got)
	}
	if got := readFile(t, r, "b.txt"); got != "only on feature\n" {
		t.Fatalf("b.txt = %q", got)
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature" {
		t.Fatalf("CurrentBranch = %q, want feature", branch)
	}
	if got := statusMap(t, r); len(got) != 0 {
		t.Fatalf("status after checkout = %v, want clean", got)
	}
}

func TestCheckoutRefusesDirtyTrackedFile(t *testing.T) {
	r := twoBranches(t)
	writeFile(t, r, "a.txt", "local edit\n")

	if err := r.Checkout("feature", CheckoutOptions{}); !errors.Is(err, ErrUncommittedChanges) {
		t.Fatalf("Checkout err = %v, want ErrUncommittedChanges", err)
	}
	if got := readFile(t, r, "a.txt"); got != "local edit\n" {
		t.Fatalf("refused checkout touched a.txt: %q", got)
	}
	if branch, _ := r.CurrentBranch(); branch != "main" {
		t.Fatalf("refused checkout moved HEAD to %q", branch)
	}

	if err := r.Checkout("feature", CheckoutOptions{Force: true}); err != nil {
		t.Fatalf("Checkout --force: %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "feature\n" {
		t.Fatalf("forced checkout a.txt = %q", got)
	}
}

func TestCheckoutRefusesUntrackedOverwrite(t *testing.T) {
	r := twoBranches(t)
	writeFile(t, r, "b.txt", "mine\n")
	if err := r.Checkout("feature", CheckoutOptions{}); !errors.Is(err, ErrUncommittedChanges) {
		t.Fatalf("Checkout err = %v, want ErrUncommittedChanges", err)
	}

	// An untracked file identical to the incoming one is not in the way.
	writeFile(t, r, "b.txt", "only on feature\n")
	if err := r.Checkout("feature", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout with identical untracked file: %v", err)
	}
}

func TestCheckoutKeepsUnrelatedUntrackedFiles(t *testing.T) {
	r := twoBranches(t)
	writeFile(t, r, "notes.txt", "scratch\n")
	if err := r.Checkout("feature", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if got := readFile(t, r, "notes.txt"); got != "scratch\n" {
		t.Fatalf("notes.txt = %q", got)
	}
}

func TestCheckoutCreateBranch(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1")
	c1 := commitAll(t, r, "first")

	if err := r.Checkout("topic", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b: %v", err)
	}
	if got := mustResolve(t, r, "refs/heads/topic"); got != c1 {
		t.Fatalf("topic = %s, want %s", got, c1)
	}
	if head, _ := r.Head(); head != "refs/heads/topic" {
		t.Fatalf("HEAD = %q", head)
	}
	if err := r.Checkout("topic", CheckoutOptions{Create: true}); !errors.Is(err, ErrRefExists) {
		t.Fatalf("second Checkout -b err = %v, want ErrRefExists", err)
	}
	if err := r.Checkout("bad..name", CheckoutOptions{Create: true}); !errors.Is(err, ErrInvalidRefName) {
		t.Fatalf("Checkout -b bad..name err = %v, want ErrInvalidRefName", err)
	}
}

func TestCheckoutCreateOnUnbornHead(t *testing.T) {
	r := newTestRepo(t)
	if err := r.Checkout("trunk", CheckoutOptions{Create: true}); err != nil {
		t.Fatalf("Checkout -b on unborn HEAD: %v", err)
	}
	writeFile(t, r, "a.txt", "1")
	h := commitAll(t, r, "first")
	if got := mustResolve(t, r, "refs/heads/trunk"); got != h {
		t.Fatalf("trunk = %s, want %s", got, h)
	}
}

func TestCheckoutCreatesTrackingBranch(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1")
	c1 := commitAll(t, r, "first")
	if err := r.UpdateRef("refs/remotes/origin/dev", c1); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	if err := r.Checkout("dev", CheckoutOptions{}); err != nil {
		t.Fatalf("Checkout dev: %v", err)
	}
	if got := mustResolve(t, r, "refs/heads/dev"); got != c1 {
		t.Fatalf("dev = %s, want %s", got, c1)
	}
	remoteName, branch, ok, err := r.Upstream("dev")
	if err != nil || !ok || remoteName != "origin" || branch != "dev" {
		t.Fatalf("Upstream(dev) = %s/%s ok=%v err=%v", remoteName, branch, ok, err)
	}
}

func TestCheckoutUnknownTarget(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1")
	commitAll(t, r, "first")
	if err := r.Checkout("nowhere", CheckoutOptions{}); !errors.Is(err, ErrRefNotFound) {
		t.Fatalf("Checkout(nowhere) err = %v, want ErrRefNotFound", err)
	}
}

func TestRestorePaths(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "committed\n")
	writeFile(t, r, "dir/b.txt", "b\n")
	commitAll(t, r, "base")

	writeFile(t, r, "a.txt", "scribble\n")
	if err := r.FS.Remove(r.workPath("dir/b.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.RestorePaths([]string{"a.txt", "dir"}); err != nil {
		t.Fatalf("RestorePaths: %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "committed\n" {
		t.Fatalf("a.txt = %q", got)
	}
	if got := readFile(t, r, "dir/b.txt"); got != "b\n" {
		t.Fatalf("dir/b.txt = %q", got)
	}
	if err := r.RestorePaths([]string{"missing.txt"}); !errors.Is(err, ErrPathspec) {
		t.Fatalf("RestorePaths(missing) err = %v, want ErrPathspec", err)
	}
}
