package gitcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/repo"
)

func newCheckoutCmd(env *Env) *cobra.Command {
	var (
		create bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "checkout [-b] <branch|revision> [start-point] | -- <paths...>",
		Short: "Switch branches or restore worktree files",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				if dash > 0 {
					return fmt.Errorf("checkout <revision> -- <paths> is not supported; use reset or restore from the index")
				}
				paths, err := env.paths(args)
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					return fmt.Errorf("no paths given after --")
				}
				return r.RestorePaths(paths)
			}
			if len(args) == 0 || len(args) > 2 {
				return fmt.Errorf("expected a branch or revision")
			}
			if len(args) == 2 && !create {
				return fmt.Errorf("a start point requires -b")
			}

			opts := repo.CheckoutOptions{Force: force, Create: create}
			if len(args) == 2 {
				opts.StartPoint = args[1]
			}
			if err := r.Checkout(args[0], opts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			head, err := r.Head()
			if err != nil {
				return err
			}
			name, onBranch := strings.CutPrefix(head, "refs/heads/")
			switch {
			case !onBranch:
				fmt.Fprintf(out, "HEAD is now at %s\n", object.Hash(head).Short())
			case create:
				fmt.Fprintf(out, "Switched to a new branch '%s'\n", name)
			default:
				fmt.Fprintf(out, "Switched to branch '%s'\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&create, "branch", "b", false, "create and switch to a new branch")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard local changes")
	return cmd
}
