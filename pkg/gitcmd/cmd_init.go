package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

func newInitCmd(env *Env) *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := env.Dir
			if len(args) == 1 {
				p, err := vfs.Resolve(env.Dir, args[0])
				if err != nil {
					return err
				}
				dir = p
			}
			if env.CheckWrite != nil {
				if err := env.CheckWrite(dir); err != nil {
					return err
				}
			}
			opts := env.repoOptions()
			if branch != "" {
				opts.DefaultBranch = branch
			}
			r, err := repo.Init(env.FS, dir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty Git repository in %s/\n", r.GitDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "initial-branch", "b", "", "name of the initial branch")
	return cmd
}
