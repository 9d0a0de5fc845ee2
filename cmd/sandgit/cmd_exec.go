package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "exec <command line...>",
		Short: "Run one shell command line in the sandbox",
		Long: "Run one shell command line in the sandbox. The process exits with the\n" +
			"line's exit code. With the memory store nothing outlives the call.",
		Args: cobra.MinimumNArgs(1),
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
			res := in.Execute(cmd.Context(), strings.Join(args, " "), sess)
			a.writeResult(res)
			a.exitCode = res.ExitCode
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory inside the sandbox")
	return cmd
}
