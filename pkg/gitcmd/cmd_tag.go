package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd(env *Env) *cobra.Command {
	var del, force bool

	cmd := &cobra.Command{
		Use:   "tag [-d] [-f] [name [revision]]",
		Short: "Create, list, or delete lightweight tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if del {
					return fmt.Errorf("tag name required")
				}
				r, err := env.openRepo(false)
				if err != nil {
					return err
				}
				tags, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(out, t)
				}
				return nil
			}

			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			if del {
				h, err := r.ResolveRef("refs/tags/" + args[0])
				if err != nil {
					return fmt.Errorf("tag '%s' not found", args[0])
				}
				if err := r.DeleteTag(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted tag '%s' (was %s)\n", args[0], h.Short())
				return nil
			}
			rev := "HEAD"
			if len(args) == 2 {
				rev = args[1]
			}
			target, err := r.ResolveRevision(rev)
			if err != nil {
				return err
			}
			return r.CreateTag(args[0], target, force)
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete a tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	return cmd
}
