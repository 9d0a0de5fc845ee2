package shell

import (
	"context"
	"fmt"
	"io/fs"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/odvcencio/sandgit/pkg/bytestore"
	"github.com/odvcencio/sandgit/pkg/gitserver"
	"github.com/odvcencio/sandgit/pkg/repo"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

type testShell struct {
	t    *testing.T
	fs   *vfs.FS
	in   *Interpreter
	sess *SessionState
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()
	fsys := vfs.New(bytestore.NewMemStore())
	for _, dir := range []string{"/project", "/tmp"} {
		if err := fsys.MkdirAll(dir); err != nil {
			t.Fatalf("MkdirAll %s: %v", dir, err)
		}
	}
	if err := fsys.WriteFile("/readonly/file", []byte("outside\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	in, err := New(fsys, Options{
		ProjectRoot: "/project",
		ScratchRoot: "/tmp",
		Author:      "Shell User <shell@example.com>",
		Clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			n++
			return base.Add(time.Duration(n) * time.Second)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testShell{t: t, fs: fsys, in: in, sess: NewSession("/project")}
}

func (s *testShell) run(line string) Result {
	s.t.Helper()
	return s.in.Execute(context.Background(), line, s.sess)
}

// ok runs line, fails the test on a non-zero exit and returns stdout.
func (s *testShell) ok(line string) string {
	s.t.Helper()
	res := s.run(line)
	if res.ExitCode != 0 {
		s.t.Fatalf("%q exited %d: %s", line, res.ExitCode, res.Stderr)
	}
	return res.Stdout
}

func TestCdAndPwd(t *testing.T) {
	s := newTestShell(t)
	s.ok("mkdir -p src/pkg")
	s.ok("cd src/pkg")
	if out := s.ok("pwd"); out != "/project/src/pkg\n" {
		t.Fatalf("pwd = %q", out)
	}
	s.ok("cd ..")
	if s.sess.Cwd != "/project/src" || s.sess.Env["PWD"] != "/project/src" {
		t.Fatalf("session = %+v", s.sess)
	}
	if out := s.ok("cd -"); out != "/project/src/pkg\n" {
		t.Fatalf("cd - = %q", out)
	}
	s.ok("cd")
	if s.sess.Cwd != "/project" {
		t.Fatalf("cd with no args went to %q", s.sess.Cwd)
	}
	s.ok("cd /readonly")

	res := s.run("cd /nonexistent")
	if res.ExitCode != 1 || res.Stderr != "cd: /nonexistent: No such file or directory\n" {
		t.Fatalf("cd missing = %+v", res)
	}
	res = s.run("cd /readonly/file")
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Not a directory") {
		t.Fatalf("cd file = %+v", res)
	}
	if s.sess.Cwd != "/readonly" {
		t.Fatalf("failed cd moved the session to %q", s.sess.Cwd)
	}
}

func TestFileBuiltins(t *testing.T) {
	s := newTestShell(t)
	s.ok("echo hello > a.txt")
	s.ok("echo more >> a.txt")
	if out := s.ok("cat a.txt"); out != "hello\nmore\n" {
		t.Fatalf("cat = %q", out)
	}
	s.ok("cp a.txt b.txt && mv b.txt c.txt")
	if out := s.ok("ls"); out != "a.txt\nc.txt\n" {
		t.Fatalf("ls = %q", out)
	}
	s.ok("mkdir d && touch d/x && cp -r d e")
	if out := s.ok("ls e"); out != "x\n" {
		t.Fatalf("ls e = %q", out)
	}
	res := s.run("rm d")
	if res.ExitCode != 1 || res.Stderr != "rm: /project/d: Is a directory\n" {
		t.Fatalf("rm dir = %+v", res)
	}
	res = s.run("rmdir e")
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Directory not empty") {
		t.Fatalf("rmdir non-empty = %+v", res)
	}
	s.ok("rm -r d e && rm c.txt && rm -f missing.txt")
	if out := s.ok("ls"); out != "a.txt\n" {
		t.Fatalf("ls after rm = %q", out)
	}
	s.ok("mkdir sub && mv a.txt sub")
	if out := s.ok("cat sub/a.txt"); out != "hello\nmore\n" {
		t.Fatalf("cat moved = %q", out)
	}
	if out := s.ok("echo -n no newline"); out != "no newline" {
		t.Fatalf("echo -n = %q", out)
	}

	res = s.run("cat sub/a.txt nope.txt")
	if res.ExitCode != 1 || res.Stdout != "hello\nmore\n" || res.Stderr != "cat: /project/nope.txt: No such file or directory\n" {
		t.Fatalf("cat partial = %+v", res)
	}
}

func TestErrnoText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&fs.PathError{Op: "rmdir", Path: "/e", Err: vfs.ErrNotEmpty}, "Directory not empty"},
		{&fs.PathError{Op: "rm", Path: "/d", Err: vfs.ErrIsDir}, "Is a directory"},
		{&fs.PathError{Op: "cat", Path: "/f/x", Err: vfs.ErrNotDir}, "Not a directory"},
		{&fs.PathError{Op: "mkdir", Path: "/d", Err: vfs.ErrExists}, "File exists"},
		{&fs.PathError{Op: "cat", Path: "/nope", Err: vfs.ErrNotFound}, "No such file or directory"},
		{&fs.PathError{Op: "touch", Path: "/ro", Err: vfs.ErrPermissionDenied}, "Permission denied"},
	}
	for _, tt := range tests {
		if got := errnoText(tt.err); got != tt.want {
			t.Errorf("errnoText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWritePolicy(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"touch outside", "touch /etc/x"},
		{"mkdir outside", "mkdir /outside"},
		{"redirect outside", "echo hi > /outside.txt"},
		{"copy outside to outside", "cp /readonly/file /elsewhere"},
		{"move out of read-only tree", "mv /readonly/file /project/file"},
		{"remove outside", "rm /readonly/file"},
		{"escape above the root", "cat ../../etc/passwd"},
		{"escape in write", "touch ../../x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestShell(t)
			res := s.run(tt.line)
			if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Permission denied") {
				t.Fatalf("%q = %+v, want permission denied", tt.line, res)
			}
		})
	}

	s := newTestShell(t)
	if out := s.ok("cat /readonly/file"); out != "outside\n" {
		t.Fatalf("read outside = %q", out)
	}
	s.ok("cp /readonly/file copy.txt")
	s.ok("echo scratch > /tmp/s.txt")
	if got, err := s.fs.ReadFile("/readonly/file"); err != nil || string(got) != "outside\n" {
		t.Fatalf("read-only file changed: %q %v", got, err)
	}
}

func TestUnknownCommandAndSyntax(t *testing.T) {
	s := newTestShell(t)
	res := s.run("frob --now")
	if res.ExitCode != ExitNotFound || res.Stderr != "frob: command not found\n" {
		t.Fatalf("unknown = %+v", res)
	}
	res = s.run("echo 'open")
	if res.ExitCode != ExitUsage || !strings.Contains(res.Stderr, "syntax error") {
		t.Fatalf("syntax = %+v", res)
	}
	res = s.run("ls --bogus")
	if res.ExitCode != ExitUsage || !strings.HasPrefix(res.Stderr, "ls: ") {
		t.Fatalf("bad flag = %+v", res)
	}
}

func TestSequencing(t *testing.T) {
	tests := []struct {
		line string
		out  string
		code int
	}{
		{"false && echo no; echo yes", "yes\n", 0},
		{"false || echo rescued", "rescued\n", 0},
		{"true && echo a || echo b", "a\n", 0},
		{"false && echo a || echo b", "b\n", 0},
		{"echo one; false", "one\n", 1},
		{"false; echo $?", "1\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := newTestShell(t)
			res := s.run(tt.line)
			if res.Stdout != tt.out || res.ExitCode != tt.code {
				t.Fatalf("got %q exit %d, want %q exit %d", res.Stdout, res.ExitCode, tt.out, tt.code)
			}
		})
	}
}

func TestEnvironment(t *testing.T) {
	s := newTestShell(t)
	s.ok("export NAME=world")
	if out := s.ok(`echo "hello $NAME"`); out != "hello world\n" {
		t.Fatalf("echo = %q", out)
	}
	s.ok("FOO=bar")
	if out := s.ok("echo $FOO"); out != "bar\n" {
		t.Fatalf("assignment = %q", out)
	}
	s.ok("unset FOO")
	if out := s.ok(`echo "[$FOO]"`); out != "[]\n" {
		t.Fatalf("after unset = %q", out)
	}
	if out := s.ok("env"); !strings.Contains(out, "NAME=world\n") || !strings.Contains(out, "HOME=/project\n") {
		t.Fatalf("env = %q", out)
	}
	if res := s.run("export 1x=2"); res.ExitCode != 1 {
		t.Fatalf("bad export = %+v", res)
	}
	s.ok("mkdir -p ~/deep && cd ~/deep")
	if s.sess.Cwd != "/project/deep" {
		t.Fatalf("~ expansion cwd = %q", s.sess.Cwd)
	}
}

func TestTextBuiltins(t *testing.T) {
	s := newTestShell(t)
	if err := s.fs.WriteFile("/project/docs/f.txt", []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := s.fs.WriteFile("/project/docs/sub/g.txt", []byte("two again\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s.ok("cd docs")

	tests := []struct {
		line string
		want string
	}{
		{"head -n 2 f.txt", "one\ntwo\n"},
		{"tail -n 1 f.txt", "three\n"},
		{"wc -l f.txt", "3 f.txt\n"},
		{"wc f.txt", "3 3 14 f.txt\n"},
		{"grep -n t f.txt", "2:two\n3:three\n"},
		{"grep -c o f.txt", "2\n"},
		{"grep -rn two .", "f.txt:2:two\nsub/g.txt:1:two again\n"},
		{"grep -il TWO f.txt sub/g.txt", "f.txt\nsub/g.txt\n"},
		{`find . -name "*.txt"`, "./f.txt\n./sub/g.txt\n"},
		{"find . -type d", ".\n./sub\n"},
		{"tree", ".\n├── f.txt\n└── sub\n    └── g.txt\n\n1 directory, 2 files\n"},
		{"ls -a sub", "g.txt\n"},
	}
	for _, tt := range tests {
		if out := s.ok(tt.line); out != tt.want {
			t.Errorf("%s = %q, want %q", tt.line, out, tt.want)
		}
	}
	if res := s.run("grep zzz f.txt"); res.ExitCode != 1 || res.Stdout != "" || res.Stderr != "" {
		t.Fatalf("grep no match = %+v", res)
	}
	if res := s.run("grep '(' f.txt"); res.ExitCode != ExitUsage {
		t.Fatalf("grep bad pattern = %+v", res)
	}
}

func TestDiffBuiltin(t *testing.T) {
	s := newTestShell(t)
	s.ok("echo x > a.txt; echo x > same.txt; echo y > b.txt")
	if res := s.run("diff a.txt same.txt"); res.ExitCode != 0 || res.Stdout != "" {
		t.Fatalf("identical diff = %+v", res)
	}
	res := s.run("diff a.txt b.txt")
	if res.ExitCode != 1 {
		t.Fatalf("diff exit = %d", res.ExitCode)
	}
	if !strings.HasPrefix(res.Stdout, "--- a.txt\n+++ b.txt\n") || !strings.Contains(res.Stdout, "-x\n+y\n") {
		t.Fatalf("diff = %q", res.Stdout)
	}
}

func TestRedirectIntoDirectory(t *testing.T) {
	s := newTestShell(t)
	res := s.run("echo x > /project")
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Is a directory") {
		t.Fatalf("redirect = %+v", res)
	}
}

func TestGitThroughShell(t *testing.T) {
	s := newTestShell(t)
	s.ok("git init")
	s.ok("echo 1 > a.txt && git add a.txt")
	if out := s.ok(`git commit -m "first"`); !strings.Contains(out, "] first") {
		t.Fatalf("commit = %q", out)
	}
	s.ok("echo 2 > a.txt && git commit -a -m second")
	if out := s.ok("git log --oneline"); strings.Count(out, "\n") != 2 {
		t.Fatalf("log = %q", out)
	}
	s.ok("git checkout HEAD~1")
	if out := s.ok("cat a.txt"); out != "1\n" {
		t.Fatalf("a.txt at first commit = %q", out)
	}
	s.ok("git checkout main")

	res := s.run("git commit -m again")
	if res.ExitCode != 1 || !strings.HasPrefix(res.Stderr, "git: ") {
		t.Fatalf("empty commit = %+v", res)
	}
	if res := s.run("git frobnicate"); res.ExitCode != 1 {
		t.Fatalf("unknown git subcommand = %+v", res)
	}

	s.ok("cd /readonly")
	res = s.run("git init")
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Permission denied") {
		t.Fatalf("git init outside = %+v", res)
	}
	if s.fs.Exists("/readonly/.git") {
		t.Fatal("git init wrote outside the writable roots")
	}
}

func TestGitIdentityFromSession(t *testing.T) {
	s := newTestShell(t)
	s.ok("git init && echo x > f && git add f")
	s.ok("export GIT_AUTHOR_NAME='Env Author' GIT_AUTHOR_EMAIL=env@example.com")
	s.ok("git commit -m first")
	if out := s.ok("git log"); !strings.Contains(out, "Author: Env Author <env@example.com>") {
		t.Fatalf("log = %q", out)
	}
}

func TestMergeConflictThroughShell(t *testing.T) {
	s := newTestShell(t)
	s.ok("git init && echo base > f.txt && git add f.txt && git commit -m base")
	s.ok("git checkout -b feature && echo theirs > f.txt && git commit -a -m theirs")
	s.ok("git checkout main && echo ours > f.txt && git commit -a -m ours")

	res := s.run("git merge feature")
	if res.ExitCode != 1 || !strings.Contains(res.Stdout, "CONFLICT (content): Merge conflict in f.txt") {
		t.Fatalf("merge = %+v", res)
	}
	if out := s.ok("git status -s"); out != "UU f.txt\n" {
		t.Fatalf("status = %q", out)
	}
	s.ok("echo resolved > f.txt && git add f.txt && git commit")
	if out := s.ok("git log -n 1"); !strings.Contains(out, "Merge: ") || !strings.Contains(out, "Merge branch 'feature'") {
		t.Fatalf("merge commit = %q", out)
	}
}

func TestGitRemoteThroughShell(t *testing.T) {
	upstreamFS := vfs.New(bytestore.NewMemStore())
	upstream, err := repo.Init(upstreamFS, "/srv/app", repo.Options{Identity: "Up <up@example.com>"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := upstreamFS.WriteFile("/srv/app/README", []byte("readme\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := upstream.Add([]string{"README"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := upstream.Commit(repo.CommitOptions{Message: "initial"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	srv := httptest.NewServer(gitserver.New(upstreamFS, upstream.GitDir, gitserver.Options{}))
	defer srv.Close()

	s := newTestShell(t)
	s.ok("git init")
	s.ok(fmt.Sprintf("git remote add origin %s/app.git && git pull", srv.URL))
	if out := s.ok("cat README"); out != "readme\n" {
		t.Fatalf("README = %q", out)
	}
	s.ok("echo local > local.txt && git add local.txt && git commit -m local && git push -u")
	if out := s.ok("git status"); !strings.Contains(out, "working tree clean") {
		t.Fatalf("status = %q", out)
	}
	local, err := repo.Open(s.fs, "/project", repo.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want, _ := local.ResolveRef("HEAD")
	got, err := upstream.ResolveRef("refs/heads/main")
	if err != nil || got != want {
		t.Fatalf("upstream main = %s (%v), want %s", got, err, want)
	}
}

func TestConcurrentSessions(t *testing.T) {
	s := newTestShell(t)
	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := NewSession("/project")
			line := fmt.Sprintf("mkdir -p w%d && cd w%d && echo %d > n.txt && cat n.txt && pwd", i, i, i)
			results[i] = s.in.Execute(context.Background(), line, sess)
		}(i)
	}
	wg.Wait()
	for i, res := range results {
		want := fmt.Sprintf("%d\n/project/w%d\n", i, i)
		if res.ExitCode != 0 || res.Stdout != want {
			t.Fatalf("session %d = %+v, want %q", i, res, want)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	s := newTestShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.in.Execute(ctx, "echo never", s.sess)
	if res.ExitCode != ExitInterrupted || res.Stdout != "" {
		t.Fatalf("cancelled = %+v", res)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	s := newTestShell(t)
	out := s.ok("help")
	for c := CmdPwd; int(c) < len(commandTable); c++ {
		if lookupCommand(c.String()) != c {
			t.Fatalf("command %d does not round-trip through lookup", c)
		}
		if !strings.Contains(out, "  "+c.String()+" ") {
			t.Fatalf("help does not mention %s", c)
		}
	}
}
