package gitcmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newConfigCmd(env *Env) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "config [--list] | <key> [value]",
		Short: "Get and set repository options",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case list:
				r, err := env.openRepo(false)
				if err != nil {
					return err
				}
				cfg, err := r.ReadConfig()
				if err != nil {
					return err
				}
				pairs := [][2]string{
					{"core.defaultbranch", cfg.Core.DefaultBranch},
					{"user.name", cfg.User.Name},
					{"user.email", cfg.User.Email},
					{"user.signingkey", cfg.User.SigningKey},
				}
				for name, rc := range cfg.Remotes {
					pairs = append(pairs, [2]string{"remote." + name + ".url", rc.URL})
				}
				for name, bc := range cfg.Branches {
					pairs = append(pairs,
						[2]string{"branch." + name + ".remote", bc.Remote},
						[2]string{"branch." + name + ".merge", bc.Merge})
				}
				sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
				for _, p := range pairs {
					if p[1] != "" {
						fmt.Fprintf(out, "%s=%s\n", p[0], p[1])
					}
				}
				return nil

			case len(args) == 1:
				r, err := env.openRepo(false)
				if err != nil {
					return err
				}
				v, ok, err := r.GetConfig(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q is not set", args[0])
				}
				fmt.Fprintln(out, v)
				return nil

			case len(args) == 2:
				r, err := env.openRepo(true)
				if err != nil {
					return err
				}
				return r.SetConfig(args[0], args[1])
			}
			return fmt.Errorf("expected a key or --list")
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all set options")
	return cmd
}
