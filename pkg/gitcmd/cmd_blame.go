package gitcmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBlameCmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "blame [revision] <path>",
		Short: "Show the commit that last changed each line",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			rev, pathArg := "HEAD", args[0]
			if len(args) == 2 {
				rev, pathArg = args[0], args[1]
			}
			paths, err := env.paths([]string{pathArg})
			if err != nil {
				return err
			}
			lines, err := r.Blame(cmd.Context(), rev, paths[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, l := range lines {
				marker := ""
				if l.Boundary {
					marker = "^"
				}
				name, _, _ := strings.Cut(l.Author, "<")
				fmt.Fprintf(out, "%s%s (%s %s %d) %s\n",
					marker, l.Commit.Short(), strings.TrimSpace(name),
					time.Unix(l.Time, 0).UTC().Format("2006-01-02 15:04:05"), l.Line, l.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "max-commits", 0, "stop after walking this many commits")
	return cmd
}
