package diff

import (
	"sort"

	"github.com/odvcencio/sandgit/pkg/object"
)

// Status is the kind of change recorded for a path.
type Status int

const (
	Modified Status = iota
	Added
	Deleted
)

func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	default:
		return "modified"
	}
}

// Letter returns the one-letter code used in name-status listings.
func (s Status) Letter() string {
	switch s {
	case Added:
		return "A"
	case Deleted:
		return "D"
	default:
		return "M"
	}
}

// FileChange describes one path that differs between two snapshots.
type FileChange struct {
	Path    string
	Status  Status
	OldHash object.Hash
	NewHash object.Hash
	OldMode string
	NewMode string
}

// Snapshots compares two flattened path maps, returning changes sorted by path.
func Snapshots(old, new map[string]object.TreeFile) []FileChange {
	var out []FileChange
	for p, o := range old {
		n, ok := new[p]
		switch {
		case !ok:
			out = append(out, FileChange{Path: p, Status: Deleted, OldHash: o.Hash, OldMode: o.Mode})
		case n.Hash != o.Hash || n.Mode != o.Mode:
			out = append(out, FileChange{Path: p, Status: Modified, OldHash: o.Hash, NewHash: n.Hash, OldMode: o.Mode, NewMode: n.Mode})
		}
	}
	for p, n := range new {
		if _, ok := old[p]; !ok {
			out = append(out, FileChange{Path: p, Status: Added, NewHash: n.Hash, NewMode: n.Mode})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Trees compares two tree objects. An empty hash stands for the empty tree.
func Trees(store *object.Store, oldTree, newTree object.Hash) ([]FileChange, error) {
	old, err := store.FlattenTreeMap(oldTree)
	if err != nil {
		return nil, err
	}
	cur, err := store.FlattenTreeMap(newTree)
	if err != nil {
		return nil, err
	}
	return Snapshots(old, cur), nil
}

// BlobPair loads the old and new content of a change. Missing sides are nil.
func BlobPair(store *object.Store, c FileChange) ([]byte, []byte, error) {
	var old, cur []byte
	if c.OldHash != "" {
		b, err := store.ReadBlob(c.OldHash)
		if err != nil {
			return nil, nil, err
		}
		old = b.Data
	}
	if c.NewHash != "" {
		b, err := store.ReadBlob(c.NewHash)
		if err != nil {
			return nil, nil, err
		}
		cur = b.Data
	}
	return old, cur, nil
}
