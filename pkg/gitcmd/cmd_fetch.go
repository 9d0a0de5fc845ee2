package gitcmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newFetchCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Download objects and refs from a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(true)
			if err != nil {
				return err
			}
			name := "origin"
			if len(args) == 1 {
				name = args[0]
			}
			res, err := r.Fetch(cmd.Context(), name, repo.FetchOptions{Transport: env.Transport})
			if err != nil {
				return err
			}
			refs := make([]string, 0, len(res.Updated))
			for ref := range res.Updated {
				refs = append(refs, ref)
			}
			sort.Strings(refs)
			out := cmd.OutOrStdout()
			for _, ref := range refs {
				fmt.Fprintf(out, " * %s -> %s\n", res.Updated[ref].Short(), ref)
			}
			return nil
		},
	}
}
