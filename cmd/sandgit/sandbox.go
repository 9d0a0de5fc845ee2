package main

import (
	"fmt"

	"github.com/odvcencio/sandgit/pkg/bytestore"
	"github.com/odvcencio/sandgit/pkg/config"
	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/shell"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// openFS opens the configured store and makes sure both writable roots
// exist. The returned close function releases the store.
func (a *app) openFS() (*vfs.FS, func() error, error) {
	var (
		store bytestore.Store
		done  = func() error { return nil }
	)
	switch a.cfg.Store.Backend {
	case config.StoreMemory:
		store = bytestore.NewMemStore()
	case config.StoreDir:
		d, err := bytestore.OpenDir(a.cfg.Store.Path, bytestore.WithCompression(a.cfg.Store.Compress))
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		store = d
	case config.StoreSQLite:
		s, err := bytestore.OpenSQLite(a.cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		store, done = s, s.Close
	default:
		return nil, nil, fmt.Errorf("open store: unknown backend %q", a.cfg.Store.Backend)
	}
	a.logger.Debug("store opened", "backend", a.cfg.Store.Backend, "path", a.cfg.Store.Path)

	fsys := vfs.New(store)
	for _, dir := range []string{a.cfg.Sandbox.ProjectRoot, a.cfg.Sandbox.ScratchRoot} {
		if dir == "" {
			continue
		}
		if err := fsys.MkdirAll(dir); err != nil {
			done()
			return nil, nil, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	return fsys, done, nil
}

// interpreter builds a shell over fsys from the loaded settings.
func (a *app) interpreter(fsys *vfs.FS) (*shell.Interpreter, error) {
	getenv := func(key string) string {
		v, _ := a.lookup(key)
		return v
	}
	return shell.New(fsys, shell.Options{
		ProjectRoot:    a.cfg.Sandbox.ProjectRoot,
		ScratchRoot:    a.cfg.Sandbox.ScratchRoot,
		Author:         a.cfg.Identity(),
		DefaultBranch:  a.cfg.Sandbox.DefaultBranch,
		Credentials:    remote.EnvCredentials{Getenv: getenv},
		RemoteTimeout:  a.cfg.Remote.Timeout,
		RemoteAttempts: a.cfg.Remote.Attempts,
		RetryBackoff:   a.cfg.Remote.RetryBackoff,
		UserAgent:      a.cfg.Remote.UserAgent,
		MergeLimit:     merge.Limit{MaxSteps: a.cfg.Merge.MaxSteps},
		Logger:         a.logger,
	})
}

// session starts in the project root, or in dir when given.
func (a *app) session(fsys *vfs.FS, dir string) (*shell.SessionState, error) {
	sess := shell.NewSession(a.cfg.Sandbox.ProjectRoot)
	if dir == "" {
		return sess, nil
	}
	p, err := vfs.Resolve(sess.Cwd, dir)
	if err != nil {
		return nil, err
	}
	if !fsys.IsDir(p) {
		return nil, fmt.Errorf("%s: not a directory", p)
	}
	sess.Cwd = p
	sess.Env["PWD"] = p
	return sess, nil
}

func (a *app) writeResult(res shell.Result) {
	fmt.Fprint(a.stdout, res.Stdout)
	fmt.Fprint(a.stderr, res.Stderr)
}
