package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(env *Env) *cobra.Command {
	var (
		del     bool
		all     bool
		remotes bool
	)

	cmd := &cobra.Command{
		Use:   "branch [name [start-point]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case del:
				if len(args) == 0 {
					return fmt.Errorf("branch name required")
				}
				r, err := env.openRepo(true)
				if err != nil {
					return err
				}
				for _, name := range args {
					h, err := r.ResolveRef("refs/heads/" + name)
					if err != nil {
						return fmt.Errorf("branch '%s' not found", name)
					}
					if err := r.DeleteBranch(name); err != nil {
						return err
					}
					fmt.Fprintf(out, "Deleted branch %s (was %s).\n", name, h.Short())
				}
				return nil

			case len(args) > 0:
				r, err := env.openRepo(true)
				if err != nil {
					return err
				}
				start := "HEAD"
				if len(args) == 2 {
					start = args[1]
				}
				target, err := r.ResolveCommit(start)
				if err != nil {
					return err
				}
				return r.CreateBranch(args[0], target)
			}

			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			current, _ := r.CurrentBranch()
			if !remotes {
				branches, err := r.ListBranches()
				if err != nil {
					return err
				}
				for _, b := range branches {
					marker := "  "
					if b == current {
						marker = "* "
					}
					fmt.Fprintf(out, "%s%s\n", marker, b)
				}
			}
			if all || remotes {
				tracking, err := r.ListRemoteBranches()
				if err != nil {
					return err
				}
				for _, b := range tracking {
					fmt.Fprintf(out, "  remotes/%s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete branches")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list local and remote-tracking branches")
	cmd.Flags().BoolVarP(&remotes, "remotes", "r", false, "list remote-tracking branches")
	return cmd
}
