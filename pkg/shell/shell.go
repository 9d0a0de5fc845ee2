// Package shell is a small command interpreter over a sandbox filesystem.
// A line is tokenized, split into statements and dispatched to a fixed set
// of builtins, one of which forwards to the git command surface.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// Exit codes beyond 0 and 1.
const (
	ExitUsage       = 2
	ExitNotFound    = 127
	ExitInterrupted = 130
)

// ErrCommandNotFound is reported for names outside the builtin set.
var ErrCommandNotFound = errors.New("command not found")

// Options configures an Interpreter.
type Options struct {
	// ProjectRoot and ScratchRoot are the only trees writes may touch.
	ProjectRoot string
	ScratchRoot string

	// Author is the "Name <email>" identity for commits when neither the
	// repository nor the session environment names one.
	Author        string
	DefaultBranch string

	Credentials    remote.CredentialLookup
	RemoteTimeout  time.Duration
	RemoteAttempts int
	RetryBackoff   time.Duration
	UserAgent      string
	HTTPClient     *http.Client

	MergeLimit merge.Limit
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Interpreter executes command lines. It holds no per-session state and
// may serve many sessions at once.
type Interpreter struct {
	fs     *vfs.FS
	opts   Options
	logger *slog.Logger
}

// New returns an interpreter over fsys.
func New(fsys *vfs.FS, opts Options) (*Interpreter, error) {
	var err error
	if opts.ProjectRoot == "" {
		opts.ProjectRoot = "/project"
	}
	if opts.ProjectRoot, err = vfs.Clean(opts.ProjectRoot); err != nil {
		return nil, fmt.Errorf("shell: project root: %w", err)
	}
	if opts.ScratchRoot != "" {
		if opts.ScratchRoot, err = vfs.Clean(opts.ScratchRoot); err != nil {
			return nil, fmt.Errorf("shell: scratch root: %w", err)
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{fs: fsys, opts: opts, logger: logger}, nil
}

// SessionState is owned by the caller and threaded through every Execute.
// Only cd changes Cwd; export and assignments change Env.
type SessionState struct {
	Cwd      string
	Env      map[string]string
	LastExit int
}

// NewSession starts a session in the project root.
func NewSession(projectRoot string) *SessionState {
	return &SessionState{
		Cwd: projectRoot,
		Env: map[string]string{
			"HOME": projectRoot,
			"PWD":  projectRoot,
			"USER": "sandbox",
		},
	}
}

// Result is the captured outcome of one Execute.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Execute runs one command line. Statements joined by "&&" or "||" run
// conditionally on the previous exit code; ";" always continues. The exit
// code is the last executed statement's.
func (in *Interpreter) Execute(ctx context.Context, line string, sess *SessionState) Result {
	if sess == nil {
		sess = NewSession(in.opts.ProjectRoot)
	}
	if sess.Cwd == "" {
		sess.Cwd = in.opts.ProjectRoot
	}
	if sess.Env == nil {
		sess.Env = map[string]string{}
	}

	var stdout, stderr bytes.Buffer
	stmts, err := parse(line)
	if err != nil {
		fmt.Fprintf(&stderr, "sandgit: %v\n", err)
		sess.LastExit = ExitUsage
		return Result{Stderr: stderr.String(), ExitCode: ExitUsage}
	}

	status := sess.LastExit
	skip := false
	for _, st := range stmts {
		if !skip {
			if err := ctx.Err(); err != nil {
				fmt.Fprintf(&stderr, "sandgit: %v\n", err)
				status = ExitInterrupted
				sess.LastExit = status
				break
			}
			status = in.runStatement(ctx, sess, st, &stdout, &stderr)
			sess.LastExit = status
		}
		switch st.next {
		case connAnd:
			skip = status != 0
		case connOr:
			skip = status == 0
		default:
			skip = false
		}
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: status}
}

func (in *Interpreter) runStatement(ctx context.Context, sess *SessionState, st statement, stdout, stderr io.Writer) int {
	lookup := func(name string) string {
		if name == "?" {
			return strconv.Itoa(sess.LastExit)
		}
		return sess.Env[name]
	}
	args := make([]string, 0, len(st.words))
	for _, w := range st.words {
		s := w.expand(lookup)
		if s == "" && !w.quoted {
			continue
		}
		args = append(args, s)
	}
	if len(args) == 0 {
		return 0
	}

	out := stdout
	var captured *bytes.Buffer
	var target string
	if st.redirect != nil {
		p, err := in.resolve(sess, st.redirect.target.expand(lookup))
		if err == nil {
			err = in.checkWrite(p)
		}
		if err == nil && in.fs.IsDir(p) {
			err = &fs.PathError{Op: "redirect", Path: p, Err: vfs.ErrIsDir}
		}
		if err != nil {
			fmt.Fprintf(stderr, "sandgit: %s\n", describe(err))
			return 1
		}
		target = p
		captured = &bytes.Buffer{}
		out = captured
	}

	code := in.dispatch(ctx, &call{sess: sess, name: args[0], args: args[1:], stdout: out, stderr: stderr})

	if captured != nil {
		data := captured.Bytes()
		if st.redirect.append {
			if prev, err := in.fs.ReadFile(target); err == nil {
				data = append(prev, data...)
			}
		}
		if err := in.fs.WriteFile(target, data, 0o644); err != nil {
			fmt.Fprintf(stderr, "sandgit: %s\n", describe(err))
			return 1
		}
	}
	return code
}

// call is one builtin invocation.
type call struct {
	sess   *SessionState
	name   string
	args   []string
	stdout io.Writer
	stderr io.Writer
}

// exitStatus ends a builtin with a code after it reported its own errors.
type exitStatus int

func (e exitStatus) Error() string { return "exit status " + strconv.Itoa(int(e)) }

// usageError reports bad arguments; the builtin exits 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// report prints "<cmd>: <message>" without ending the builtin.
func (c *call) report(err error) {
	fmt.Fprintf(c.stderr, "%s: %s\n", c.name, describe(err))
}

// finish maps a builtin's error to an exit code, printing it once.
func (c *call) finish(err error) int {
	if err == nil {
		return 0
	}
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	c.report(err)
	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return 1
}

// resolve turns a user path into a sandbox path relative to the session.
func (in *Interpreter) resolve(sess *SessionState, p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home := sess.Env["HOME"]
		if home == "" {
			home = in.opts.ProjectRoot
		}
		p = home + strings.TrimPrefix(p, "~")
	}
	return vfs.Resolve(sess.Cwd, p)
}

// checkWrite enforces the write policy: only the project and scratch
// trees are writable.
func (in *Interpreter) checkWrite(p string) error {
	if vfs.Within(in.opts.ProjectRoot, p) {
		return nil
	}
	if in.opts.ScratchRoot != "" && vfs.Within(in.opts.ScratchRoot, p) {
		return nil
	}
	return &fs.PathError{Op: "write", Path: p, Err: vfs.ErrPermissionDenied}
}

// describe renders an error the way POSIX tools do for path failures.
func describe(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) && pe.Err != nil && err == error(pe) {
		return pe.Path + ": " + errnoText(pe.Err)
	}
	return err.Error()
}

func errnoText(err error) string {
	// ENOTEMPTY also matches fs.ErrExist, so errnos go first.
	switch {
	case errors.Is(err, syscall.ENOTEMPTY):
		return "Directory not empty"
	case errors.Is(err, syscall.EISDIR):
		return "Is a directory"
	case errors.Is(err, syscall.ENOTDIR):
		return "Not a directory"
	case errors.Is(err, fs.ErrNotExist):
		return "No such file or directory"
	case errors.Is(err, fs.ErrPermission):
		return "Permission denied"
	case errors.Is(err, fs.ErrExist):
		return "File exists"
	}
	return err.Error()
}
