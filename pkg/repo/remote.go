package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/sandgit/pkg/merge"
	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/remote"
)

// FetchOptions configures Fetch.
type FetchOptions struct {
	Transport remote.Options
}

// FetchResult lists the remote-tracking refs a fetch moved.
type FetchResult struct {
	Updated map[string]object.Hash // full local ref name -> new id
	Objects int
}

// Fetch downloads the branches and tags of a remote. Remote branches land
// under refs/remotes/<remote>/; tags that do not exist locally are
// created. Local refs change only after the whole pack is ingested.
func (r *Repo) Fetch(ctx context.Context, remoteName string, opts FetchOptions) (*FetchResult, error) {
	rd, err := r.Remote(remoteName)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	client := r.transport(opts.Transport)
	adv, err := client.Discover(ctx, rd.URL, remote.UploadPack)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	var wants []object.Hash
	seen := make(map[object.Hash]struct{})
	for _, name := range sortedKeys(adv.Refs) {
		if !strings.HasPrefix(name, "refs/heads/") && !strings.HasPrefix(name, "refs/tags/") {
			continue
		}
		h := adv.Refs[name]
		if _, dup := seen[h]; dup || r.Store.Has(h) {
			continue
		}
		seen[h] = struct{}{}
		wants = append(wants, h)
	}

	res := &FetchResult{Updated: make(map[string]object.Hash)}
	if len(wants) > 0 {
		haves, err := r.localTips()
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		pack, err := client.FetchPack(ctx, rd.URL, wants, haves, adv.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		ingested, err := r.Store.IngestPack(pack)
		if err != nil {
			return nil, fmt.Errorf("fetch: ingest pack: %w", err)
		}
		res.Objects = len(ingested)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	for _, name := range sortedKeys(adv.Refs) {
		h := adv.Refs[name]
		switch {
		case strings.HasPrefix(name, "refs/heads/"):
			local := "refs/remotes/" + remoteName + "/" + strings.TrimPrefix(name, "refs/heads/")
			cur, _ := r.readRef(local)
			if cur.hash == h {
				continue
			}
			if err := r.updateRef(local, h, nil, "fetch: "+rd.URL); err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
				return res, fmt.Errorf("fetch: %w", err)
			}
			res.Updated[local] = h
		case strings.HasPrefix(name, "refs/tags/"):
			if r.FS.Exists(r.gitPath(name)) {
				continue
			}
			if err := r.updateRef(name, h, nil, "fetch: "+rd.URL); err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
				return res, fmt.Errorf("fetch: %w", err)
			}
			res.Updated[name] = h
		}
	}
	if branch, ok := strings.CutPrefix(adv.Head, "refs/heads/"); ok {
		target := symrefPrefix + "refs/remotes/" + remoteName + "/" + branch + "\n"
		if err := r.FS.WriteFile(r.gitPath("refs/remotes/"+remoteName+"/HEAD"), []byte(target), 0o644); err != nil {
			return res, fmt.Errorf("fetch: %w", err)
		}
	}
	r.logger.Debug("fetch complete", "remote", remoteName, "objects", res.Objects, "updated", len(res.Updated))
	return res, nil
}

// PullOptions configures Pull.
type PullOptions struct {
	Transport remote.Options
}

// Pull fetches from a remote and merges <remote>/<branch> into HEAD. An
// empty remote or branch falls back to the current branch's upstream,
// then to "origin" and the current branch name.
func (r *Repo) Pull(ctx context.Context, remoteName, branch string, opts PullOptions) (*MergeResult, error) {
	remoteName, branch, err := r.upstreamFor(remoteName, branch)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	if _, err := r.Fetch(ctx, remoteName, FetchOptions{Transport: opts.Transport}); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	res, err := r.Merge(ctx, remoteName+"/"+branch)
	if err != nil {
		return res, fmt.Errorf("pull: %w", err)
	}
	return res, nil
}

// PushOptions configures Push.
type PushOptions struct {
	Transport remote.Options
	// Force skips the fast-forward check.
	Force bool
	// SetUpstream records <remote>/<branch> as the branch's upstream.
	SetUpstream bool
}

// PushResult describes a completed push.
type PushResult struct {
	Ref      string
	Old      object.Hash
	New      object.Hash
	UpToDate bool
	Objects  int
}

// Push sends a local branch to the same name on a remote. Without Force
// it fails with ErrNonFastForward unless the remote tip is an ancestor of
// the local one. The remote-tracking ref moves only after the server
// accepted the update.
func (r *Repo) Push(ctx context.Context, remoteName, branch string, opts PushOptions) (*PushResult, error) {
	remoteName, branch, err := r.upstreamFor(remoteName, branch)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	rd, err := r.Remote(remoteName)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	local, err := r.resolveDirect("refs/heads/" + branch)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}

	client := r.transport(opts.Transport)
	adv, err := client.Discover(ctx, rd.URL, remote.ReceivePack)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	ref := "refs/heads/" + branch
	old := adv.Refs[ref]
	res := &PushResult{Ref: ref, Old: old, New: local}
	if old == local {
		res.UpToDate = true
		return res, r.afterPush(remoteName, branch, local, opts.SetUpstream)
	}

	if old != "" && !opts.Force {
		if !r.Store.Has(old) {
			return nil, fmt.Errorf("push %s: %w: remote tip %s is not present locally; fetch first", ref, ErrNonFastForward, old.Short())
		}
		ok, err := merge.IsAncestor(ctx, r.Store, old, local, r.mergeLimit)
		if err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("push %s: %w", ref, ErrNonFastForward)
		}
	}

	var haves []object.Hash
	for _, h := range adv.Refs {
		if r.Store.Has(h) {
			haves = append(haves, h)
		}
	}
	sort.Slice(haves, func(i, j int) bool { return haves[i] < haves[j] })
	missing, err := r.Store.CollectMissing([]object.Hash{local}, haves)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	var pack bytes.Buffer
	if _, err := r.Store.WritePack(&pack, missing); err != nil {
		return nil, fmt.Errorf("push: write pack: %w", err)
	}
	res.Objects = len(missing)

	cmd := remote.Command{Ref: ref, Old: old, New: local}
	if _, err := client.Push(ctx, rd.URL, []remote.Command{cmd}, pack.Bytes(), adv.Capabilities); err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	r.logger.Debug("push complete", "remote", remoteName, "ref", ref, "old", old.Short(), "new", local.Short(), "objects", len(missing))
	return res, r.afterPush(remoteName, branch, local, opts.SetUpstream)
}

func (r *Repo) afterPush(remoteName, branch string, h object.Hash, setUpstream bool) error {
	tracking := "refs/remotes/" + remoteName + "/" + branch
	if err := r.updateRef(tracking, h, nil, "update by push"); err != nil && !errors.Is(err, ErrRefUpdatedButReflogAppendFailed) {
		return fmt.Errorf("push: %w", err)
	}
	if setUpstream {
		if err := r.SetUpstream(branch, remoteName, branch); err != nil {
			return fmt.Errorf("push: %w", err)
		}
	}
	return nil
}

// upstreamFor fills in a missing remote or branch name.
func (r *Repo) upstreamFor(remoteName, branch string) (string, string, error) {
	current, err := r.CurrentBranch()
	if err != nil {
		return "", "", err
	}
	if current != "" && (remoteName == "" || branch == "") {
		if upRemote, upBranch, ok, err := r.Upstream(current); err != nil {
			return "", "", err
		} else if ok {
			if remoteName == "" {
				remoteName = upRemote
			}
			if branch == "" && remoteName == upRemote {
				branch = upBranch
			}
		}
	}
	if remoteName == "" {
		remoteName = "origin"
	}
	if branch == "" {
		branch = current
	}
	if branch == "" {
		return "", "", fmt.Errorf("no branch given and HEAD is detached")
	}
	return remoteName, branch, nil
}

// localTips returns the ids of all local refs, the haves for negotiation.
func (r *Repo) localTips() ([]object.Hash, error) {
	refs, err := r.ListRefHashes("refs/")
	if err != nil {
		return nil, err
	}
	seen := make(map[object.Hash]struct{}, len(refs))
	var out []object.Hash
	for _, name := range sortedKeys(refs) {
		h := refs[name]
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out, nil
}

func (r *Repo) transport(opts remote.Options) *remote.Client {
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	return remote.NewClient(opts)
}
