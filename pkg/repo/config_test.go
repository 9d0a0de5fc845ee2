package repo

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigGetSet(t *testing.T) {
	r := newTestRepo(t)
	v, ok, err := r.GetConfig("user.name")
	if err != nil || !ok || v != "Test User" {
		t.Fatalf("GetConfig(user.name) = %q ok=%v err=%v", v, ok, err)
	}
	if _, ok, err := r.GetConfig("user.signingkey"); err != nil || ok {
		t.Fatalf("GetConfig(user.signingkey) ok=%v err=%v, want unset", ok, err)
	}
	if err := r.SetConfig("core.defaultBranch", "trunk"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if v, _, _ := r.GetConfig("core.defaultbranch"); v != "trunk" {
		t.Fatalf("core.defaultbranch = %q", v)
	}
	if err := r.SetConfig("color.ui", "auto"); err == nil {
		t.Fatal("SetConfig(color.ui) accepted an unknown key")
	}

	raw, err := r.FS.ReadFile(r.gitPath(configFile))
	if err != nil {
		t.Fatalf("ReadFile(config): %v", err)
	}
	if !strings.Contains(string(raw), `name = "Test User"`) {
		t.Fatalf("config file:\n%s", raw)
	}
}

func TestRemotes(t *testing.T) {
	r := newTestRepo(t)
	if err := r.AddRemote("origin", "https://example.com/a.git"); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := r.AddRemote("origin", "https://example.com/b.git"); !errors.Is(err, ErrRemoteExists) {
		t.Fatalf("AddRemote duplicate err = %v, want ErrRemoteExists", err)
	}
	if err := r.AddRemote("backup", "https://example.com/b.git"); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := r.AddRemote("bad/name", "https://example.com/c.git"); !errors.Is(err, ErrInvalidRefName) {
		t.Fatalf("AddRemote(bad/name) err = %v", err)
	}

	remotes, err := r.Remotes()
	if err != nil {
		t.Fatalf("Remotes: %v", err)
	}
	if len(remotes) != 2 || remotes[0].Name != "backup" || remotes[1].Name != "origin" {
		t.Fatalf("Remotes = %+v", remotes)
	}
	d, err := r.Remote("origin")
	if err != nil || d.URL != "https://example.com/a.git" {
		t.Fatalf("Remote(origin) = %+v err=%v", d, err)
	}
	if v, _, _ := r.GetConfig("remote.origin.url"); v != d.URL {
		t.Fatalf("remote.origin.url = %q", v)
	}

	writeFile(t, r, "a.txt", "1")
	h := commitAll(t, r, "first")
	if err := r.UpdateRef("refs/remotes/origin/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if err := r.SetUpstream("main", "origin", "main"); err != nil {
		t.Fatalf("SetUpstream: %v", err)
	}
	if err := r.RemoveRemote("origin"); err != nil {
		t.Fatalf("RemoveRemote: %v", err)
	}
	if _, err := r.Remote("origin"); !errors.Is(err, ErrRemoteNotFound) {
		t.Fatalf("Remote after removal err = %v", err)
	}
	if refs, _ := r.ListRefs("refs/remotes/origin/"); len(refs) != 0 {
		t.Fatalf("tracking refs left behind: %v", refs)
	}
	if _, _, ok, _ := r.Upstream("main"); ok {
		t.Fatal("upstream still points at the removed remote")
	}
	if err := r.RemoveRemote("origin"); !errors.Is(err, ErrRemoteNotFound) {
		t.Fatalf("second RemoveRemote err = %v", err)
	}
}

func TestIgnoreChecker(t *testing.T) {
	ic := NewIgnoreChecker("# comment\n*.log\n!keep.log\nbuild/\n/root.txt\ndocs/*.tmp\n**/cache\n")
	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"app.log", false, true},
		{"nested/deep/app.log", false, true},
		{"keep.log", false, false},
		{"build", true, true},
		{"build/out.o", false, true},
		{"build", false, false},
		{"root.txt", false, true},
		{"sub/root.txt", false, false},
		{"docs/a.tmp", false, true},
		{"docs/sub/a.tmp", false, false},
		{"a/b/cache", true, true},
		{"cache/x", false, true},
		{".git/HEAD", false, true},
		{"main.go", false, false},
	}
	for _, tt := range tests {
		if got := ic.IsIgnored(tt.path, tt.isDir); got != tt.want {
			t.Errorf("IsIgnored(%q, dir=%v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}
