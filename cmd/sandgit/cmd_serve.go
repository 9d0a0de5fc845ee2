package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/sandgit/pkg/gitserver"
	"github.com/odvcencio/sandgit/pkg/repo"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, repoDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a sandbox repository over smart HTTP",
		Long: "Serve a sandbox repository over git's smart-HTTP protocol. When\n" +
			"SANDGIT_SERVE_TOKEN is set every request must carry it as a bearer\n" +
			"token or as the basic-auth password.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, done, err := a.openFS()
			if err != nil {
				return err
			}
			defer done()
			if repoDir == "" {
				repoDir = a.cfg.Sandbox.ProjectRoot
			}
			r, err := repo.Open(fsys, repoDir, repo.Options{Logger: a.logger})
			if err != nil {
				return err
			}
			token, _ := a.lookup("SANDGIT_SERVE_TOKEN")
			handler := gitserver.New(fsys, r.GitDir, gitserver.Options{
				Logger:    a.logger,
				Authorize: tokenAuthorizer(token),
			})

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving %s on http://%s\n", r.Root, ln.Addr())
			return serve(cmd.Context(), ln, handler)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8418", "listen address")
	cmd.Flags().StringVar(&repoDir, "repo", "", "repository directory inside the sandbox (default: project root)")
	return cmd
}

// serve runs handler on ln until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// tokenAuthorizer accepts requests carrying token. An empty token admits
// everything.
func tokenAuthorizer(token string) func(*http.Request) bool {
	if token == "" {
		return nil
	}
	match := func(s string) bool {
		return subtle.ConstantTimeCompare([]byte(s), []byte(token)) == 1
	}
	return func(r *http.Request) bool {
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			return match(bearer)
		}
		if _, password, ok := r.BasicAuth(); ok {
			return match(password)
		}
		return false
	}
}
