package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/odvcencio/sandgit/pkg/object"
)

func TestBlameAttributesLines(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "f.txt", "a\nb\nc\n")
	c1 := commitAll(t, r, "first")
	writeFile(t, r, "f.txt", "a\nB\nc\n")
	c2 := commitAll(t, r, "edit b")
	writeFile(t, r, "f.txt", "a\nB\nc\nd\n")
	c3 := commitAll(t, r, "append d")

	lines, err := r.Blame(context.Background(), "HEAD", "f.txt", 0)
	if err != nil {
		t.Fatalf("Blame: %v", err)
	}
	want := []struct {
		text   string
		commit object.Hash
	}{
		{"a\n", c1},
		{"B\n", c2},
		{"c\n", c1},
		{"d\n", c3},
	}
	if len(lines) != len(want) {
		t.Fatalf("Blame returned %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		l := lines[i]
		if l.Line != i+1 || l.Text != w.text || l.Commit != w.commit {
			t.Errorf("line %d = {%d %q %s}, want {%d %q %s}", i, l.Line, l.Text, l.Commit.Short(), i+1, w.text, w.commit.Short())
		}
		if l.Boundary {
			t.Errorf("line %d marked boundary", i+1)
		}
		if l.Author != "Test User <test@example.com>" {
			t.Errorf("line %d author = %q", i+1, l.Author)
		}
	}
}

func TestBlameLimitMarksBoundary(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "f.txt", "a\n")
	commitAll(t, r, "first")
	writeFile(t, r, "f.txt", "a\nb\n")
	c2 := commitAll(t, r, "second")

	lines, err := r.Blame(context.Background(), "", "f.txt", 1)
	if err != nil {
		t.Fatalf("Blame: %v", err)
	}
	for _, l := range lines {
		if l.Commit != c2 || !l.Boundary {
			t.Fatalf("line %d = %s boundary=%v, want %s boundary", l.Line, l.Commit.Short(), l.Boundary, c2.Short())
		}
	}
}

func TestBlameFileAddedLater(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "a.txt", "1\n")
	commitAll(t, r, "first")
	writeFile(t, r, "new.txt", "x\ny\n")
	c2 := commitAll(t, r, "add new")

	lines, err := r.Blame(context.Background(), "HEAD", "new.txt", 0)
	if err != nil {
		t.Fatalf("Blame: %v", err)
	}
	for _, l := range lines {
		if l.Commit != c2 || l.Boundary {
			t.Fatalf("line %d = %s boundary=%v", l.Line, l.Commit.Short(), l.Boundary)
		}
	}
	if _, err := r.Blame(context.Background(), "HEAD~1", "new.txt", 0); !errors.Is(err, ErrPathNotInCommit) {
		t.Fatalf("Blame at HEAD~1 err = %v, want ErrPathNotInCommit", err)
	}
}
