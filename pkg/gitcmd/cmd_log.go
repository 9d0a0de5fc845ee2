package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newLogCmd(env *Env) *cobra.Command {
	var (
		depth   int
		oneline bool
	)

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			it, err := r.Log(rev, depth)
			if err != nil {
				return err
			}
			entries, err := it.Collect()
			if err != nil {
				return err
			}
			if len(entries) == 0 && rev == "" {
				return fmt.Errorf("your current branch '%s' does not have any commits yet", branchLabel(r))
			}

			out := cmd.OutOrStdout()
			for i, e := range entries {
				if oneline {
					fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), firstLine(e.Commit.Message))
					continue
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				repo.WriteCommitHeader(out, e.Hash, e.Commit)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "max-count", "n", 0, "limit the number of commits")
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	return cmd
}
