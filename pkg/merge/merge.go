// Package merge implements commit ancestry queries and tree-level three-way
// merges on top of the object store.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/sandgit/pkg/diff"
	"github.com/odvcencio/sandgit/pkg/diff3"
	"github.com/odvcencio/sandgit/pkg/object"
)

// Options configures ThreeWay.
type Options struct {
	Limit  Limit
	Labels diff3.Labels
	Logger *slog.Logger
}

// FileResult is the merged state of one path. Hash is empty when the merge
// removes the path. Base, Ours and Theirs are the blob ids on each side and
// are kept so conflicts can be staged.
type FileResult struct {
	Path     string
	Hash     object.Hash
	Mode     string
	Conflict bool
	Base     object.Hash
	Ours     object.Hash
	Theirs   object.Hash
}

// Result is the outcome of one merge invocation.
type Result struct {
	MergedTree  object.Hash
	Conflicts   []string
	FastForward bool
	UpToDate    bool
	Files       []FileResult
}

// HasConflicts reports whether any path is conflicted.
func (r *Result) HasConflicts() bool { return len(r.Conflicts) > 0 }

// ThreeWay merges theirs into ours using base as the common ancestor. All
// three are commit ids; base may be empty for unrelated histories.
//
// When ours is an ancestor of theirs the merge is a fast-forward and the
// result is theirs' tree with no per-path work. When theirs is already
// contained in ours the result is ours' tree.
func ThreeWay(ctx context.Context, store *object.Store, base, ours, theirs object.Hash, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	labels := opts.Labels
	if labels.Ours == "" {
		labels.Ours = diff3.DefaultLabels.Ours
	}
	if labels.Theirs == "" {
		labels.Theirs = diff3.DefaultLabels.Theirs
	}

	oursCommit, err := store.ReadCommit(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: read ours: %w", err)
	}
	theirsCommit, err := store.ReadCommit(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: read theirs: %w", err)
	}

	ff, err := IsAncestor(ctx, store, ours, theirs, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if ff {
		logger.Debug("merge fast-forward", "ours", ours.Short(), "theirs", theirs.Short())
		return &Result{MergedTree: theirsCommit.TreeHash, FastForward: true}, nil
	}
	contained, err := IsAncestor(ctx, store, theirs, ours, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if contained {
		return &Result{MergedTree: oursCommit.TreeHash, UpToDate: true}, nil
	}

	var baseTree object.Hash
	if base != "" {
		baseCommit, err := store.ReadCommit(base)
		if err != nil {
			return nil, fmt.Errorf("merge: read base: %w", err)
		}
		baseTree = baseCommit.TreeHash
	}

	res, err := Trees(ctx, store, baseTree, oursCommit.TreeHash, theirsCommit.TreeHash, labels)
	if err != nil {
		return nil, err
	}
	logger.Debug("merge three-way", "base", base.Short(), "ours", ours.Short(), "theirs", theirs.Short(), "conflicts", len(res.Conflicts))
	return res, nil
}

// Trees merges three tree objects path by path and writes the merged tree.
func Trees(ctx context.Context, store *object.Store, baseTree, oursTree, theirsTree object.Hash, labels diff3.Labels) (*Result, error) {
	baseMap, err := store.FlattenTreeMap(baseTree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten base: %w", err)
	}
	oursMap, err := store.FlattenTreeMap(oursTree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten ours: %w", err)
	}
	theirsMap, err := store.FlattenTreeMap(theirsTree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten theirs: %w", err)
	}

	res := &Result{}
	for _, p := range collectPaths(baseMap, oursMap, theirsMap) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := mergePath(store, p, baseMap[p], oursMap[p], theirsMap[p], labels)
		if err != nil {
			return nil, fmt.Errorf("merge %s: %w", p, err)
		}
		res.Files = append(res.Files, fr)
	}
	moveDirectoryCollisions(res.Files, oursMap, labels)

	var files []object.TreeFile
	for _, fr := range res.Files {
		if fr.Conflict {
			res.Conflicts = append(res.Conflicts, fr.Path)
		}
		if fr.Hash != "" {
			files = append(files, object.TreeFile{Path: fr.Path, Mode: fr.Mode, Hash: fr.Hash})
		}
	}
	sort.Strings(res.Conflicts)

	tree, err := store.WriteTreeFromFiles(files)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res.MergedTree = tree
	return res, nil
}

// moveDirectoryCollisions handles a file on one side sitting where the other
// side has a directory. The file moves to "<path>~<label>", named after the
// side that kept it, and is marked conflicted; the directory stays.
func moveDirectoryCollisions(results []FileResult, oursMap map[string]object.TreeFile, labels diff3.Labels) {
	dirs := make(map[string]bool)
	taken := make(map[string]bool)
	for _, fr := range results {
		if fr.Hash == "" {
			continue
		}
		taken[fr.Path] = true
		for d := path.Dir(fr.Path); d != "." && !dirs[d]; d = path.Dir(d) {
			dirs[d] = true
		}
	}
	for i := range results {
		fr := &results[i]
		if fr.Hash == "" || !dirs[fr.Path] {
			continue
		}
		label := labels.Theirs
		if _, ok := oursMap[fr.Path]; ok {
			label = labels.Ours
		}
		moved := fr.Path + "~" + strings.ReplaceAll(label, "/", "_")
		for taken[moved] || dirs[moved] {
			moved += "_"
		}
		taken[moved] = true
		fr.Path = moved
		fr.Conflict = true
	}
}

func collectPaths(maps ...map[string]object.TreeFile) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range maps {
		for p := range m {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func mergePath(store *object.Store, p string, base, ours, theirs object.TreeFile, labels diff3.Labels) (FileResult, error) {
	fr := FileResult{Path: p, Base: base.Hash, Ours: ours.Hash, Theirs: theirs.Hash}
	switch {
	case ours.Hash == theirs.Hash, ours.Hash == base.Hash:
		fr.Hash = theirs.Hash
		fr.Mode = mergeMode(base.Mode, ours.Mode, theirs.Mode)
		return fr, nil
	case theirs.Hash == base.Hash:
		fr.Hash = ours.Hash
		fr.Mode = mergeMode(base.Mode, ours.Mode, theirs.Mode)
		return fr, nil
	}

	fr.Conflict = true
	baseData, err := readBlob(store, base.Hash)
	if err != nil {
		return fr, err
	}
	oursData, err := readBlob(store, ours.Hash)
	if err != nil {
		return fr, err
	}
	theirsData, err := readBlob(store, theirs.Hash)
	if err != nil {
		return fr, err
	}

	var merged []byte
	switch {
	case ours.Hash == "" || theirs.Hash == "":
		// Modify/delete: keep the surviving side, bracketed.
		merged = wholeFileConflict(oursData, theirsData, labels)
		fr.Mode = ours.Mode
		if ours.Hash == "" {
			fr.Mode = theirs.Mode
		}
	case diff.IsBinary(baseData) || diff.IsBinary(oursData) || diff.IsBinary(theirsData):
		fr.Hash = ours.Hash
		fr.Mode = ours.Mode
		return fr, nil
	default:
		r := diff3.MergeLabeled(baseData, oursData, theirsData, labels)
		merged = r.Merged
		fr.Conflict = r.HasConflicts
		fr.Mode = mergeMode(base.Mode, ours.Mode, theirs.Mode)
	}

	h, err := store.WriteBlob(&object.Blob{Data: merged})
	if err != nil {
		return fr, err
	}
	fr.Hash = h
	return fr, nil
}

func mergeMode(base, ours, theirs string) string {
	if ours == "" {
		return theirs
	}
	if theirs == "" || ours != base {
		return ours
	}
	return theirs
}

func readBlob(store *object.Store, h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	b, err := store.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

func wholeFileConflict(ours, theirs []byte, labels diff3.Labels) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< " + labels.Ours + "\n")
	writeTerminated(&buf, ours)
	buf.WriteString("=======\n")
	writeTerminated(&buf, theirs)
	buf.WriteString(">>>>>>> " + labels.Theirs + "\n")
	return buf.Bytes()
}

func writeTerminated(buf *bytes.Buffer, data []byte) {
	buf.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
}
