package gitcmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newMergeCmd(env *Env) *cobra.Command {
	var abort bool

	cmd := &cobra.Command{
		Use:   "merge <branch> | --abort",
		Short: "Join another branch into the current one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			if abort {
				return r.AbortMerge()
			}
			if len(args) != 1 {
				return fmt.Errorf("specify a branch to merge")
			}
			res, err := r.Merge(cmd.Context(), args[0])
			reportMerge(cmd, res, err)
			return err
		},
	}

	cmd.Flags().BoolVar(&abort, "abort", false, "abandon an in-progress merge")
	return cmd
}

// reportMerge prints the outcome of a merge or pull.
func reportMerge(cmd *cobra.Command, res *repo.MergeResult, err error) {
	out := cmd.OutOrStdout()
	var conflict *repo.MergeConflictError
	switch {
	case errors.As(err, &conflict):
		for _, p := range conflict.Paths {
			fmt.Fprintf(out, "Auto-merging %s\nCONFLICT (content): Merge conflict in %s\n", p, p)
		}
		fmt.Fprintln(out, "Automatic merge failed; fix conflicts and then commit the result.")
	case err != nil || res == nil:
	case res.UpToDate:
		fmt.Fprintln(out, "Already up to date.")
	case res.FastForward:
		if res.Base != "" {
			fmt.Fprintf(out, "Updating %s..%s\n", res.Base.Short(), res.Commit.Short())
		}
		fmt.Fprintln(out, "Fast-forward")
	default:
		fmt.Fprintf(out, "Merge made by the 'three-way' strategy.\n")
	}
}
