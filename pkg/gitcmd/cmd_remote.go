package gitcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoteCmd(env *Env) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "remote [-v]",
		Short: "Manage configured remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			remotes, err := r.Remotes()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rd := range remotes {
				if verbose {
					fmt.Fprintf(out, "%s\t%s (fetch)\n%s\t%s (push)\n", rd.Name, rd.URL, rd.Name, rd.URL)
					continue
				}
				fmt.Fprintln(out, rd.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show remote URLs")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			return r.AddRemote(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a remote and its tracking branches",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			return r.RemoveRemote(args[0])
		},
	})
	return cmd
}
