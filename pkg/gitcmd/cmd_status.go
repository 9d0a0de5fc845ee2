package gitcmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/repo"
)

func newStatusCmd(env *Env) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.openRepo(false)
			if err != nil {
				return err
			}
			entries, err := r.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if short {
				for _, e := range entries {
					fmt.Fprintf(out, "%s %s\n", shortCode(e), e.Path)
				}
				return nil
			}
			return printLongStatus(out, r, entries)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "give the output in the short format")
	return cmd
}

func shortCode(e repo.StatusEntry) string {
	if e.Conflicted {
		return "UU"
	}
	if e.WorkStatus == repo.StatusUntracked && e.IndexStatus == repo.StatusUnmodified {
		return "??"
	}
	return string(statusLetter(e.IndexStatus)) + string(statusLetter(e.WorkStatus))
}

func statusLetter(s repo.FileStatus) byte {
	switch s {
	case repo.StatusAdded:
		return 'A'
	case repo.StatusModified:
		return 'M'
	case repo.StatusDeleted:
		return 'D'
	case repo.StatusUntracked:
		return '?'
	}
	return ' '
}

func printLongStatus(out io.Writer, r *repo.Repo, entries []repo.StatusEntry) error {
	branch := branchLabel(r)
	if branch == "HEAD" {
		head, _ := r.Head()
		fmt.Fprintf(out, "HEAD detached at %.7s\n", head)
	} else {
		fmt.Fprintf(out, "On branch %s\n", branch)
	}
	if _, err := r.ResolveRef("HEAD"); errors.Is(err, repo.ErrUnborn) {
		fmt.Fprintln(out, "\nNo commits yet")
	}
	if state, err := r.State(); err == nil && state == repo.StateMerging {
		fmt.Fprintln(out, "\nYou have unmerged paths.\n  (fix conflicts and run \"git commit\")\n  (use \"git merge --abort\" to abort the merge)")
	}

	var unmerged, staged, unstaged, untracked []string
	for _, e := range entries {
		if e.Conflicted {
			unmerged = append(unmerged, "both modified:   "+e.Path)
			continue
		}
		if e.WorkStatus == repo.StatusUntracked {
			untracked = append(untracked, e.Path)
		}
		switch e.IndexStatus {
		case repo.StatusAdded:
			staged = append(staged, "new file:   "+e.Path)
		case repo.StatusModified:
			staged = append(staged, "modified:   "+e.Path)
		case repo.StatusDeleted:
			staged = append(staged, "deleted:    "+e.Path)
		}
		switch e.WorkStatus {
		case repo.StatusModified:
			unstaged = append(unstaged, "modified:   "+e.Path)
		case repo.StatusDeleted:
			unstaged = append(unstaged, "deleted:    "+e.Path)
		}
	}

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(out, "\t%s\n", l)
		}
	}
	section("Unmerged paths", unmerged)
	section("Changes to be committed", staged)
	section("Changes not staged for commit", unstaged)
	section("Untracked files", untracked)
	if len(entries) == 0 {
		fmt.Fprintln(out, "nothing to commit, working tree clean")
	}
	return nil
}
