package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCmd(env *Env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "add <paths...>",
		Short: "Add file contents to the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			if all {
				return r.Add([]string{r.Root})
			}
			if len(args) == 0 {
				return fmt.Errorf("nothing specified, nothing added")
			}
			paths, err := env.paths(args)
			if err != nil {
				return err
			}
			return r.Add(paths)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "A", false, "add changes from the whole worktree")
	return cmd
}

func newRmCmd(env *Env) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Remove files from the worktree and the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			paths, err := env.paths(args)
			if err != nil {
				return err
			}
			if err := r.Remove(paths, cached); err != nil {
				return err
			}
			for _, a := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", a)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "only remove from the index")
	return cmd
}
