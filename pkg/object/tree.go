package object

import (
	"fmt"
	"sort"
	"strings"
)

// EmptyTreeHash is the id of the tree with no entries.
const EmptyTreeHash Hash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// TreeFile is a single file in a flattened tree.
type TreeFile struct {
	Path string
	Mode string
	Hash Hash
}

// WriteTreeFromFiles groups flat forward-slash paths by directory, writes
// every subtree, and returns the root tree hash.
func (s *Store) WriteTreeFromFiles(files []TreeFile) (Hash, error) {
	byPath := make(map[string]TreeFile, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	return s.writeTreeDir(byPath, "")
}

func (s *Store) writeTreeDir(files map[string]TreeFile, prefix string) (Hash, error) {
	direct := make(map[string]TreeFile)
	subdirs := make(map[string]struct{})

	for p, f := range files {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash >= 0 {
			subdirs[rel[:slash]] = struct{}{}
		} else {
			direct[rel] = f
		}
	}

	entries := make([]TreeEntry, 0, len(direct)+len(subdirs))
	for name, f := range direct {
		if _, clash := subdirs[name]; clash {
			return "", fmt.Errorf("write tree: %q is both a file and a directory", joinTreePath(prefix, name))
		}
		mode := f.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		entries = append(entries, TreeEntry{Name: name, Mode: mode, Hash: f.Hash})
	}
	for name := range subdirs {
		child := joinTreePath(prefix, name)
		h, err := s.writeTreeDir(files, child)
		if err != nil {
			return "", err
		}
		entries = append(entries, TreeEntry{Name: name, Mode: TreeModeDir, Hash: h})
	}

	h, err := s.WriteTree(&TreeObj{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree recursively, returning every file entry with its
// full path, sorted by path.
func (s *Store) FlattenTree(h Hash) ([]TreeFile, error) {
	var out []TreeFile
	if err := s.flattenTreeRec(h, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) flattenTreeRec(h Hash, prefix string, out *[]TreeFile) error {
	if h == EmptyTreeHash && !s.Has(h) {
		return nil
	}
	tr, err := s.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, e := range tr.Entries {
		full := joinTreePath(prefix, e.Name)
		switch e.Mode {
		case TreeModeDir:
			if err := s.flattenTreeRec(e.Hash, full, out); err != nil {
				return err
			}
		case TreeModeSubmodule:
			// Gitlinks name commits in another repository.
		default:
			*out = append(*out, TreeFile{Path: full, Mode: e.Mode, Hash: e.Hash})
		}
	}
	return nil
}

// FlattenTreeMap is FlattenTree keyed by path. An empty root hash yields an
// empty map.
func (s *Store) FlattenTreeMap(h Hash) (map[string]TreeFile, error) {
	out := make(map[string]TreeFile)
	if h == "" {
		return out, nil
	}
	files, err := s.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		out[f.Path] = f
	}
	return out, nil
}

// TreeEntryAtPath finds the file entry at relPath below treeHash.
func (s *Store) TreeEntryAtPath(treeHash Hash, relPath string) (TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash
	for i, part := range parts {
		tr, err := s.ReadTree(current)
		if err != nil {
			return TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}
		var (
			entry TreeEntry
			found bool
		)
		for _, te := range tr.Entries {
			if te.Name == part {
				entry, found = te, true
				break
			}
		}
		if !found {
			return TreeEntry{}, false, nil
		}
		if i == len(parts)-1 {
			if entry.IsDir() {
				return TreeEntry{}, false, nil
			}
			return entry, true, nil
		}
		if !entry.IsDir() {
			return TreeEntry{}, false, nil
		}
		current = entry.Hash
	}
	return TreeEntry{}, false, nil
}

func joinTreePath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
