package repo

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/odvcencio/sandgit/pkg/object"
)

func TestUpdateRefCASConcurrentSingleWinner(t *testing.T) {
	r := newTestRepo(t)

	base := object.Hash(strings.Repeat("a", 40))
	if err := r.UpdateRef("refs/heads/main", base); err != nil {
		t.Fatalf("UpdateRef(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	successCh := make(chan object.Hash, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			next := object.Hash(fmt.Sprintf("%040x", i+1))
			if err := r.UpdateRefCAS("refs/heads/main", next, base); err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}
	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.Hash
	successes := 0
	for h := range successCh {
		successes++
		winner = h
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}
	conflicts := 0
	for err := range errCh {
		if !errors.Is(err, ErrRefConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
		conflicts++
	}
	if conflicts != workers-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, workers-1)
	}
	if got := mustResolve(t, r, "refs/heads/main"); got != winner {
		t.Fatalf("main = %s, want winner %s", got, winner)
	}
}

func TestUpdateRefCASStaleExpected(t *testing.T) {
	r := newTestRepo(t)
	a := object.Hash(strings.Repeat("a", 40))
	b := object.Hash(strings.Repeat("b", 40))
	c := object.Hash(strings.Repeat("c", 40))

	if err := r.UpdateRefCAS("refs/heads/topic", a, ""); err != nil {
		t.Fatalf("create with empty expected: %v", err)
	}
	if err := r.UpdateRefCAS("refs/heads/topic", b, ""); !errors.Is(err, ErrRefConflict) {
		t.Fatalf("create over existing err = %v, want ErrRefConflict", err)
	}
	if err := r.UpdateRefCAS("refs/heads/topic", b, a); err != nil {
		t.Fatalf("CAS a->b: %v", err)
	}
	if err := r.UpdateRefCAS("refs/heads/topic", c, a); !errors.Is(err, ErrRefConflict) {
		t.Fatalf("stale CAS err = %v, want ErrRefConflict", err)
	}
	if got := mustResolve(t, r, "refs/heads/topic"); got != b {
		t.Fatalf("topic = %s, want %s", got, b)
	}
	if err := r.DeleteRef("refs/heads/topic", a); !errors.Is(err, ErrRefConflict) {
		t.Fatalf("stale delete err = %v, want ErrRefConflict", err)
	}
	if err := r.DeleteRef("refs/heads/topic", b); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
}

func TestUpdateRefRejectsInvalidInput(t *testing.T) {
	r := newTestRepo(t)
	h := object.Hash(strings.Repeat("a", 40))
	for _, name := range []string{"refs/heads/a..b", "refs/heads/x.lock", "heads/main", "refs/heads/sp ace"} {
		if err := r.UpdateRef(name, h); !errors.Is(err, ErrInvalidRefName) {
			t.Errorf("UpdateRef(%q) err = %v, want ErrInvalidRefName", name, err)
		}
	}
	if err := r.UpdateRef("refs/heads/main", "nothex"); err == nil {
		t.Error("UpdateRef with invalid id succeeded")
	}
}

func TestListRefsSorted(t *testing.T) {
	r := newTestRepo(t)
	h := object.Hash(strings.Repeat("a", 40))
	for _, name := range []string{"refs/heads/zeta", "refs/tags/v1", "refs/heads/alpha", "refs/remotes/origin/main"} {
		if err := r.UpdateRef(name, h); err != nil {
			t.Fatalf("UpdateRef(%s): %v", name, err)
		}
	}
	heads, err := r.ListRefs("refs/heads/")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(heads) != 2 || heads[0] != "refs/heads/alpha" || heads[1] != "refs/heads/zeta" {
		t.Fatalf("ListRefs(refs/heads/) = %v", heads)
	}
	all, err := r.ListRefs("refs/")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Fatalf("ListRefs not sorted: %v", all)
		}
	}
	remotes, err := r.ListRemoteBranches()
	if err != nil {
		t.Fatalf("ListRemoteBranches: %v", err)
	}
	if len(remotes) != 1 || remotes[0] != "origin/main" {
		t.Fatalf("ListRemoteBranches = %v", remotes)
	}
}
