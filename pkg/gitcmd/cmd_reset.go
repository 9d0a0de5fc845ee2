package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newResetCmd(env *Env) *cobra.Command {
	var soft, mixed, hard bool

	cmd := &cobra.Command{
		Use:   "reset [--soft|--mixed|--hard] [revision] | [--] <paths...>",
		Short: "Reset HEAD or unstage paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			modeFlags := 0
			for _, set := range []bool{soft, mixed, hard} {
				if set {
					modeFlags++
				}
			}
			if modeFlags > 1 {
				return fmt.Errorf("--soft, --mixed and --hard are mutually exclusive")
			}

			dash := cmd.ArgsLenAtDash()
			if dash >= 0 || (modeFlags == 0 && len(args) > 0 && !isRevision(r, args[0])) {
				pathArgs := args
				if dash >= 0 {
					pathArgs = args[dash:]
				}
				if modeFlags > 0 {
					return fmt.Errorf("cannot do a mode reset with paths")
				}
				paths, err := env.paths(pathArgs)
				if err != nil {
					return err
				}
				return r.Reset(paths)
			}
			if len(args) > 1 {
				return fmt.Errorf("expected at most one revision")
			}

			mode := repo.ResetMixed
			switch {
			case soft:
				mode = repo.ResetSoft
			case hard:
				mode = repo.ResetHard
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			if modeFlags == 0 && len(args) == 0 {
				// A bare reset unstages everything.
				return r.Reset(nil)
			}
			h, err := r.ResetTo(rev, mode)
			if err != nil {
				return err
			}
			if mode == repo.ResetHard {
				c, err := r.Store.ReadCommit(h)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s %s\n", h.Short(), firstLine(c.Message))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&soft, "soft", false, "move HEAD only")
	cmd.Flags().BoolVar(&mixed, "mixed", false, "move HEAD and reset the index")
	cmd.Flags().BoolVar(&hard, "hard", false, "move HEAD and reset the index and worktree")
	return cmd
}

func isRevision(r *repo.Repo, arg string) bool {
	_, err := r.ResolveCommit(arg)
	return err == nil
}
