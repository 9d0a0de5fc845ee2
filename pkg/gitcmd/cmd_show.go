package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show [revision]",
		Short: "Show a commit and its changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			text, err := r.ShowCommit(cmd.Context(), rev)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
