package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGCCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove unreachable objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			sum, err := r.GC(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d objects, removed %d\n", sum.Kept, sum.Removed)
			return nil
		},
	}
}
