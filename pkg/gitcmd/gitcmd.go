// Package gitcmd is the git command-line surface of a sandbox: a cobra
// command tree that runs one invocation against repositories stored in a
// virtual filesystem.
package gitcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/repo"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// Env is what one invocation needs from its caller.
type Env struct {
	FS  *vfs.FS
	Dir string // sandbox-absolute working directory

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Clock         func() time.Time
	MergeLimit    merge.Limit
	DefaultBranch string
	Transport     remote.Options

	// Identity is the "Name <email>" used when the repository config has
	// no user.name and user.email.
	Identity string

	// CheckWrite vets the worktree root of subcommands that modify a
	// repository. Nil allows every write.
	CheckWrite func(path string) error
}

// Run executes one git invocation; args exclude the leading "git".
// Normal output goes to env.Stdout. The returned error is the failure to
// report, already scoped to the subcommand.
func Run(ctx context.Context, env Env, args []string) error {
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Dir == "" {
		env.Dir = "/"
	}
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}

	root := newRootCmd(&env)
	root.SetArgs(args)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.SetIn(strings.NewReader(""))
	env.Logger.Debug("git invocation", "dir", env.Dir, "args", args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "git",
		Short:         "Version control for the sandbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newInitCmd(env))
	root.AddCommand(newAddCmd(env))
	root.AddCommand(newRmCmd(env))
	root.AddCommand(newStatusCmd(env))
	root.AddCommand(newCommitCmd(env))
	root.AddCommand(newLogCmd(env))
	root.AddCommand(newShowCmd(env))
	root.AddCommand(newDiffCmd(env))
	root.AddCommand(newBranchCmd(env))
	root.AddCommand(newCheckoutCmd(env))
	root.AddCommand(newMergeCmd(env))
	root.AddCommand(newResetCmd(env))
	root.AddCommand(newTagCmd(env))
	root.AddCommand(newReflogCmd(env))
	root.AddCommand(newConfigCmd(env))
	root.AddCommand(newRemoteCmd(env))
	root.AddCommand(newFetchCmd(env))
	root.AddCommand(newPullCmd(env))
	root.AddCommand(newPushCmd(env))
	root.AddCommand(newBlameCmd(env))
	root.AddCommand(newGCCmd(env))
	return root
}

func (env *Env) repoOptions() repo.Options {
	return repo.Options{
		DefaultBranch: env.DefaultBranch,
		Logger:        env.Logger,
		Clock:         env.Clock,
		MergeLimit:    env.MergeLimit,
		Identity:      env.Identity,
	}
}

// openRepo opens the repository containing the working directory. When
// mutating is set the worktree root must pass CheckWrite.
func (env *Env) openRepo(mutating bool) (*repo.Repo, error) {
	r, err := repo.Open(env.FS, env.Dir, env.repoOptions())
	if err != nil {
		return nil, err
	}
	if mutating && env.CheckWrite != nil {
		if err := env.CheckWrite(r.Root); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// paths resolves command-line paths against the working directory.
func (env *Env) paths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		p, err := vfs.Resolve(env.Dir, a)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// signer loads the SSH key named by user.signingkey from the sandbox.
func (env *Env) signer(r *repo.Repo) (object.Signer, error) {
	keyPath, ok, err := r.GetConfig("user.signingkey")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no signing key configured; set user.signingkey")
	}
	p, err := vfs.Resolve(env.Dir, keyPath)
	if err != nil {
		return nil, err
	}
	raw, err := env.FS.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	s, _, err := object.NewSSHSigner(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return s, nil
}

func branchLabel(r *repo.Repo) string {
	head, err := r.Head()
	if err != nil {
		return "HEAD"
	}
	if name, ok := strings.CutPrefix(head, "refs/heads/"); ok {
		return name
	}
	return "HEAD"
}

// firstLine returns the summary line of a commit message.
func firstLine(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
