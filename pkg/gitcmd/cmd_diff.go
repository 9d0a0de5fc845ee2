package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newDiffCmd(env *Env) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show changes between HEAD, the index and the worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			paths, err := env.paths(args)
			if err != nil {
				return err
			}
			text, err := r.Diff(cmd.Context(), repo.DiffOptions{Cached: cached, Paths: paths})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "compare the index with HEAD")
	cmd.Flags().BoolVar(&cached, "staged", false, "synonym for --cached")
	return cmd
}
