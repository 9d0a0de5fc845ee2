package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newCommitCmd(env *Env) *cobra.Command {
	var (
		message string
		author  string
		all     bool
		sign    bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record changes to the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			merging := false
			if state, err := r.State(); err == nil && state == repo.StateMerging {
				merging = true
			}
			if message == "" && !merging {
				return fmt.Errorf("no commit message given; use -m")
			}

			opts := repo.CommitOptions{Message: message, Author: author, All: all}
			if sign {
				if opts.Signer, err = env.signer(r); err != nil {
					return err
				}
			}

			parentless := false
			if _, err := r.ResolveRef("HEAD"); err != nil {
				parentless = true
			}
			h, err := r.Commit(opts)
			if err != nil {
				return err
			}
			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return err
			}
			label := branchLabel(r)
			if label == "HEAD" {
				label = "detached HEAD"
			}
			if parentless {
				label += " (root-commit)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", label, h.Short(), firstLine(c.Message))
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override the author (\"Name <email>\")")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "stage modified and deleted tracked files first")
	cmd.Flags().BoolVarP(&sign, "gpg-sign", "S", false, "sign the commit with user.signingkey")
	return cmd
}
