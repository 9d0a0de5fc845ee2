package gitcmd

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newPullCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote [branch]]",
		Short: "Fetch from a remote and merge",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			var remoteName, branch string
			if len(args) > 0 {
				remoteName = args[0]
			}
			if len(args) > 1 {
				branch = args[1]
			}
			res, err := r.Pull(cmd.Context(), remoteName, branch, repo.PullOptions{Transport: env.Transport})
			reportMerge(cmd, res, err)
			return err
		},
	}
}
