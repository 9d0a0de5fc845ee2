package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/sandgit/pkg/diff"
	"github.com/odvcencio/sandgit/pkg/diff3"
	"github.com/odvcencio/sandgit/pkg/object"
)

// ErrPathNotInCommit indicates that the blamed path does not exist at the
// starting revision.
var ErrPathNotInCommit = errors.New("path does not exist in commit")

// BlameLine attributes one line of a file to the commit that last changed
// it along first-parent history.
type BlameLine struct {
	Line     int // 1-based line number at the blamed revision
	Text     string
	Commit   object.Hash
	Author   string
	Time     int64
	Boundary bool // the walk hit its limit before finding the origin
}

// Blame attributes every line of path at rev. limit bounds the number of
// commits examined; zero means no bound.
func (r *Repo) Blame(ctx context.Context, rev, path string, limit int) ([]BlameLine, error) {
	if rev == "" {
		rev = "HEAD"
	}
	rel, err := r.repoRelPath(path)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	start, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	data, ok, err := r.blobAt(start, rel)
	if err != nil {
		return nil, fmt.Errorf("blame: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("blame %s at %s: %w", rel, start.Short(), ErrPathNotInCommit)
	}

	lines := diff3.SplitLines(data)
	out := make([]BlameLine, len(lines))
	// pos[i] is the 1-based position of final line i in the current commit's
	// version of the file; zero once attributed.
	pos := make([]int, len(lines))
	for i, l := range lines {
		out[i] = BlameLine{Line: i + 1, Text: l}
		pos[i] = i + 1
	}
	pending := len(lines)

	cur := start
	curData := data
	for steps := 1; pending > 0; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		attribute := func(i int, boundary bool) {
			out[i].Commit = cur
			out[i].Author = c.Author
			out[i].Time = c.Timestamp
			out[i].Boundary = boundary
			pos[i] = 0
			pending--
		}

		if len(c.Parents) == 0 || (limit > 0 && steps >= limit) {
			boundary := len(c.Parents) > 0
			for i := range pos {
				if pos[i] != 0 {
					attribute(i, boundary)
				}
			}
			break
		}
		parent := c.Parents[0]
		parentData, ok, err := r.blobAt(parent, rel)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		if !ok {
			for i := range pos {
				if pos[i] != 0 {
					attribute(i, false)
				}
			}
			break
		}

		mapping, err := lineMapping(ctx, parentData, curData)
		if err != nil {
			return nil, fmt.Errorf("blame: %w", err)
		}
		for i := range pos {
			if pos[i] == 0 {
				continue
			}
			if old := mapping[pos[i]]; old > 0 {
				pos[i] = old
			} else {
				attribute(i, false)
			}
		}
		cur, curData = parent, parentData
	}
	return out, nil
}

// lineMapping maps 1-based lines of new to the line they came from in old;
// added lines are absent.
func lineMapping(ctx context.Context, old, new []byte) (map[int]int, error) {
	hunks, err := diff.LinesContext(ctx, old, new, 0)
	if err != nil {
		return nil, err
	}
	added := make(map[int]bool)
	deleted := make(map[int]bool)
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case diff.Add:
				added[l.NewLine] = true
			case diff.Delete:
				deleted[l.OldLine] = true
			}
		}
	}
	oldN := len(diff3.SplitLines(old))
	newN := len(diff3.SplitLines(new))
	m := make(map[int]int, newN)
	o := 1
	for n := 1; n <= newN; n++ {
		if added[n] {
			continue
		}
		for o <= oldN && deleted[o] {
			o++
		}
		if o > oldN {
			break
		}
		m[n] = o
		o++
	}
	return m, nil
}

// blobAt returns the content of rel in a commit's tree; ok is false when
// the path is absent or a directory.
func (r *Repo) blobAt(commit object.Hash, rel string) ([]byte, bool, error) {
	c, err := r.Store.ReadCommit(commit)
	if err != nil {
		return nil, false, err
	}
	entry, ok, err := r.Store.TreeEntryAtPath(c.TreeHash, rel)
	if err != nil || !ok || entry.IsDir() {
		return nil, false, err
	}
	b, err := r.Store.ReadBlob(entry.Hash)
	if err != nil {
		return nil, false, err
	}
	return b.Data, true, nil
}
