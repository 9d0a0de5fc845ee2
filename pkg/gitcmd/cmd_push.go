package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newPushCmd(env *Env) *cobra.Command {
	var force, setUpstream bool

	cmd := &cobra.Command{
		Use:   "push [remote [branch]]",
		Short: "Update a remote branch",
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
			res, err := r.Push(cmd.Context(), remoteName, branch, repo.PushOptions{
				Transport:   env.Transport,
				Force:       force,
				SetUpstream: setUpstream,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.UpToDate {
				fmt.Fprintln(out, "Everything up-to-date")
				return nil
			}
			switch {
			case res.Old == "":
				fmt.Fprintf(out, " * [new branch] %s\n", res.Ref)
			case force:
				fmt.Fprintf(out, " + %s...%s %s (forced update)\n", res.Old.Short(), res.New.Short(), res.Ref)
			default:
				fmt.Fprintf(out, "   %s..%s %s\n", res.Old.Short(), res.New.Short(), res.Ref)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite the remote branch")
	cmd.Flags().BoolVarP(&setUpstream, "set-upstream", "u", false, "track the remote branch")
	return cmd
}
