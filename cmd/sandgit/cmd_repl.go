package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odvcencio/sandgit/pkg/shell"
)

func newReplCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Read and run shell command lines until exit or end of input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, done, err := a.openFS()
			if err != nil {
				return err
			}
			defer done()
			in, err := a.interpreter(fsys)
			if err != nil {
				return err
			}
			sess, err := a.session(fsys, dir)
			if err != nil {
				return err
			}
			if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return a.interactive(cmd.Context(), f, in, sess)
			}
			return a.batch(cmd.Context(), in, sess)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory inside the sandbox")
	return cmd
}

// exitRequest parses "exit [code]". ok is false for any other line.
func exitRequest(line string, last int) (code int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "exit" || len(fields) > 2 {
		return 0, false
	}
	if len(fields) == 1 {
		return last, true
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return shell.ExitUsage, true
	}
	return n, true
}

// batch runs lines from a non-terminal stdin without prompting.
func (a *app) batch(ctx context.Context, in *shell.Interpreter, sess *shell.SessionState) error {
	scanner := bufio.NewScanner(a.stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if code, ok := exitRequest(line, sess.LastExit); ok {
			a.exitCode = code
			return nil
		}
		a.writeResult(in.Execute(ctx, line, sess))
		if ctx.Err() != nil {
			break
		}
	}
	a.exitCode = sess.LastExit
	return scanner.Err()
}

func prompt(sess *shell.SessionState) string {
	return fmt.Sprintf("sandgit:%s$ ", sess.Cwd)
}

// interactive runs a line-editing prompt on a terminal.
func (a *app) interactive(ctx context.Context, f *os.File, in *shell.Interpreter, sess *shell.SessionState) error {
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer term.Restore(fd, state)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, a.stdout}, prompt(sess))
	for {
		line, err := t.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("repl: %w", err)
		}
		if code, ok := exitRequest(line, sess.LastExit); ok {
			a.exitCode = code
			return nil
		}
		res := in.Execute(ctx, line, sess)
		io.WriteString(t, res.Stdout)
		io.WriteString(t, res.Stderr)
		t.SetPrompt(prompt(sess))
		if ctx.Err() != nil {
			break
		}
	}
	a.exitCode = sess.LastExit
	return nil
}
