package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/sandgit/pkg/gitcmd"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/repo"
)

func (in *Interpreter) env(c *call) error {
	if len(c.args) > 0 {
		return usagef("running commands under env is not supported")
	}
	keys := make([]string, 0, len(c.sess.Env))
	for k := range c.sess.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.stdout, "%s=%s\n", k, c.sess.Env[k])
	}
	return nil
}

func (in *Interpreter) export(c *call) error {
	if len(c.args) == 0 {
		return in.env(c)
	}
	return c.each(c.args, func(arg string) error {
		name, value, hasValue := strings.Cut(arg, "=")
		if !validName(name) {
			return fmt.Errorf("`%s': not a valid identifier", arg)
		}
		if hasValue {
			c.sess.Env[name] = value
		} else if _, ok := c.sess.Env[name]; !ok {
			c.sess.Env[name] = ""
		}
		return nil
	})
}

func (in *Interpreter) unset(c *call) error {
	return c.each(c.args, func(arg string) error {
		if !validName(arg) {
			return fmt.Errorf("`%s': not a valid identifier", arg)
		}
		delete(c.sess.Env, arg)
		return nil
	})
}

// git forwards to the git command surface with the session's working
// directory and the interpreter's write policy.
func (in *Interpreter) git(ctx context.Context, c *call) error {
	identity := in.opts.Author
	if name, email := c.sess.Env["GIT_AUTHOR_NAME"], c.sess.Env["GIT_AUTHOR_EMAIL"]; name != "" && email != "" {
		identity = repo.FormatIdentity(name, email)
	}
	return gitcmd.Run(ctx, gitcmd.Env{
		FS:            in.fs,
		Dir:           c.sess.Cwd,
		Stdout:        c.stdout,
		Stderr:        c.stderr,
		Logger:        in.logger,
		Clock:         in.opts.Clock,
		MergeLimit:    in.opts.MergeLimit,
		DefaultBranch: in.opts.DefaultBranch,
		Transport: remote.Options{
			Credentials:  in.opts.Credentials,
			Timeout:      in.opts.RemoteTimeout,
			Attempts:     in.opts.RemoteAttempts,
			RetryBackoff: in.opts.RetryBackoff,
			UserAgent:    in.opts.UserAgent,
			HTTPClient:   in.opts.HTTPClient,
			Logger:       in.logger,
		},
		Identity:   identity,
		CheckWrite: in.checkWrite,
	}, c.args)
}
