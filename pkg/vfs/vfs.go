// Package vfs implements a POSIX-like filesystem over a flat byte store.
//
// Every file and directory is one store record keyed by its absolute path,
// so each mutation of a single node is a single durable Put. Paths handed to
// an FS are sandbox paths: they are resolved against the FS root, and any
// ".." that would escape that root fails with ErrPermissionDenied.
package vfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/sandgit/pkg/bytestore"
)

const (
	kindDir  byte = 'd'
	kindFile byte = 'f'
	kindExec byte = 'x'

	recordHeaderSize = 9
)

// FS is a sandboxed view of a byte store.
type FS struct {
	store bytestore.Store
	swap  bytestore.Swapper
	root  string
	now   func() time.Time
}

// Option configures an FS.
type Option func(*FS)

// WithClock overrides the clock used for modification times.
func WithClock(now func() time.Time) Option {
	return func(f *FS) { f.now = now }
}

// New returns an FS rooted at the store's "/". Stores without native
// compare-and-swap get an in-process fallback.
func New(store bytestore.Store, opts ...Option) *FS {
	f := &FS{store: store, root: "/", now: time.Now}
	if sw, ok := store.(bytestore.Swapper); ok {
		f.swap = sw
	} else {
		f.swap = &lockedSwapper{store: store}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sub returns a view whose "/" is dir. The directory is not required to
// exist yet.
func (f *FS) Sub(dir string) (*FS, error) {
	key, err := f.key(dir)
	if err != nil {
		return nil, err
	}
	sub := *f
	sub.root = key
	return &sub, nil
}

// Root returns the store path this view is rooted at.
func (f *FS) Root() string { return f.root }

func (f *FS) key(p string) (string, error) {
	clean, err := Clean(p)
	if err != nil {
		return "", err
	}
	if f.root == "/" {
		return clean, nil
	}
	if clean == "/" {
		return f.root, nil
	}
	return f.root + clean, nil
}

// node is a decoded store record.
type node struct {
	kind    byte
	modTime time.Time
	data    []byte
}

func (n *node) isDir() bool { return n.kind == kindDir }

func encodeNode(kind byte, modTime time.Time, data []byte) []byte {
	out := make([]byte, recordHeaderSize+len(data))
	out[0] = kind
	binary.BigEndian.PutUint64(out[1:recordHeaderSize], uint64(modTime.UnixNano()))
	copy(out[recordHeaderSize:], data)
	return out
}

func decodeNode(raw []byte) (*node, error) {
	if len(raw) < recordHeaderSize {
		return nil, fmt.Errorf("corrupt record: %d bytes", len(raw))
	}
	switch raw[0] {
	case kindDir, kindFile, kindExec:
	default:
		return nil, fmt.Errorf("corrupt record: kind %q", raw[0])
	}
	return &node{
		kind:    raw[0],
		modTime: time.Unix(0, int64(binary.BigEndian.Uint64(raw[1:recordHeaderSize]))),
		data:    raw[recordHeaderSize:],
	}, nil
}

// load returns the node stored at key, or (nil, nil) if there is none.
func (f *FS) load(key string) (*node, []byte, error) {
	if key == "/" {
		raw, err := f.store.Get(key)
		if err != nil {
			return &node{kind: kindDir}, nil, nil
		}
		n, err := decodeNode(raw)
		return n, raw, err
	}
	raw, err := f.store.Get(key)
	if err != nil {
		if errors.Is(err, bytestore.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", key, err)
	}
	return n, raw, nil
}

// rel maps a store key back to this view's path space.
func (f *FS) rel(key string) string {
	if f.root == "/" {
		return key
	}
	if key == f.root {
		return "/"
	}
	return strings.TrimPrefix(key, f.root)
}

// ReadFile returns a copy of the file's content.
func (f *FS) ReadFile(p string) ([]byte, error) {
	key, err := f.key(p)
	if err != nil {
		return nil, err
	}
	n, _, err := f.load(key)
	if err != nil {
		return nil, pathErr("read", p, err)
	}
	if n == nil {
		return nil, pathErr("read", p, ErrNotFound)
	}
	if n.isDir() {
		return nil, pathErr("read", p, ErrIsDir)
	}
	return n.data, nil
}

// WriteFile stores data at p, creating missing parent directories. Any
// execute bit in perm marks the file executable.
func (f *FS) WriteFile(p string, data []byte, perm fs.FileMode) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	if key == f.root {
		return pathErr("write", p, ErrIsDir)
	}
	n, _, err := f.load(key)
	if err != nil {
		return pathErr("write", p, err)
	}
	if n != nil && n.isDir() {
		return pathErr("write", p, ErrIsDir)
	}
	if err := f.ensureParents(key, p); err != nil {
		return err
	}
	kind := kindFile
	if perm&0o111 != 0 {
		kind = kindExec
	}
	if err := f.store.Put(key, encodeNode(kind, f.now(), data)); err != nil {
		return pathErr("write", p, err)
	}
	return nil
}

// ensureParents creates every missing ancestor of key, failing with
// ErrNotDir when one of them is a file.
func (f *FS) ensureParents(key, p string) error {
	var missing []string
	for dir := Dir(key); dir != "/"; dir = Dir(dir) {
		n, _, err := f.load(dir)
		if err != nil {
			return pathErr("mkdir", p, err)
		}
		if n != nil {
			if !n.isDir() {
				return pathErr("write", p, ErrNotDir)
			}
			break
		}
		missing = append(missing, dir)
	}
	now := f.now()
	for i := len(missing) - 1; i >= 0; i-- {
		if err := f.store.Put(missing[i], encodeNode(kindDir, now, nil)); err != nil {
			return pathErr("mkdir", p, err)
		}
	}
	return nil
}

// Mkdir creates a single directory whose parent must exist.
func (f *FS) Mkdir(p string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	n, _, err := f.load(key)
	if err != nil {
		return pathErr("mkdir", p, err)
	}
	if n != nil {
		return pathErr("mkdir", p, ErrExists)
	}
	parent, _, err := f.load(Dir(key))
	if err != nil {
		return pathErr("mkdir", p, err)
	}
	if parent == nil {
		return pathErr("mkdir", p, ErrNotFound)
	}
	if !parent.isDir() {
		return pathErr("mkdir", p, ErrNotDir)
	}
	return f.putDir(key, p)
}

// MkdirAll creates p and any missing parents. An existing directory is not
// an error.
func (f *FS) MkdirAll(p string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	n, _, err := f.load(key)
	if err != nil {
		return pathErr("mkdir", p, err)
	}
	if n != nil {
		if n.isDir() {
			return nil
		}
		return pathErr("mkdir", p, ErrNotDir)
	}
	if err := f.ensureParents(key, p); err != nil {
		return err
	}
	return f.putDir(key, p)
}

func (f *FS) putDir(key, p string) error {
	if err := f.store.Put(key, encodeNode(kindDir, f.now(), nil)); err != nil {
		return pathErr("mkdir", p, err)
	}
	return nil
}

// children lists the store keys directly below key.
func (f *FS) children(key string) ([]string, error) {
	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}
	keys, err := f.store.List(prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (f *FS) descendants(key string) ([]string, error) {
	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}
	keys, err := f.store.List(prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k != prefix && k != "/" {
			out = append(out, k)
		}
	}
	return out, nil
}

// Remove deletes a file or an empty directory.
func (f *FS) Remove(p string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	if key == f.root {
		return pathErr("remove", p, ErrPermissionDenied)
	}
	n, _, err := f.load(key)
	if err != nil {
		return pathErr("remove", p, err)
	}
	if n == nil {
		return pathErr("remove", p, ErrNotFound)
	}
	if n.isDir() {
		kids, err := f.children(key)
		if err != nil {
			return pathErr("remove", p, err)
		}
		if len(kids) > 0 {
			return pathErr("remove", p, ErrNotEmpty)
		}
	}
	if err := f.store.Delete(key); err != nil {
		return pathErr("remove", p, err)
	}
	return nil
}

// RemoveAll deletes p and everything below it. Unlike os.RemoveAll a
// missing path is reported as ErrNotFound.
func (f *FS) RemoveAll(p string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	if key == f.root {
		return pathErr("remove", p, ErrPermissionDenied)
	}
	n, _, err := f.load(key)
	if err != nil {
		return pathErr("remove", p, err)
	}
	if n == nil {
		return pathErr("remove", p, ErrNotFound)
	}
	if n.isDir() {
		keys, err := f.descendants(key)
		if err != nil {
			return pathErr("remove", p, err)
		}
		// Deepest first so an interrupted removal never orphans children.
		for i := len(keys) - 1; i >= 0; i-- {
			if err := f.store.Delete(keys[i]); err != nil && !errors.Is(err, bytestore.ErrNotFound) {
				return pathErr("remove", p, err)
			}
		}
	}
	if err := f.store.Delete(key); err != nil && !errors.Is(err, bytestore.ErrNotFound) {
		return pathErr("remove", p, err)
	}
	return nil
}

// Rename moves a file or a whole directory subtree. The destination parent
// must exist. An existing destination file is replaced; an existing
// destination directory is an error.
func (f *FS) Rename(oldPath, newPath string) error {
	oldKey, err := f.key(oldPath)
	if err != nil {
		return err
	}
	newKey, err := f.key(newPath)
	if err != nil {
		return err
	}
	if oldKey == f.root || newKey == f.root {
		return pathErr("rename", oldPath, ErrPermissionDenied)
	}
	if oldKey == newKey {
		return nil
	}
	src, raw, err := f.load(oldKey)
	if err != nil {
		return pathErr("rename", oldPath, err)
	}
	if src == nil {
		return pathErr("rename", oldPath, ErrNotFound)
	}
	if src.isDir() && strings.HasPrefix(newKey, oldKey+"/") {
		return pathErr("rename", newPath, ErrInvalid)
	}
	dst, _, err := f.load(newKey)
	if err != nil {
		return pathErr("rename", newPath, err)
	}
	if dst != nil && dst.isDir() {
		return pathErr("rename", newPath, ErrExists)
	}
	parent, _, err := f.load(Dir(newKey))
	if err != nil {
		return pathErr("rename", newPath, err)
	}
	if parent == nil {
		return pathErr("rename", newPath, ErrNotFound)
	}
	if !parent.isDir() {
		return pathErr("rename", newPath, ErrNotDir)
	}

	var moved []string
	if src.isDir() {
		keys, err := f.descendants(oldKey)
		if err != nil {
			return pathErr("rename", oldPath, err)
		}
		for _, k := range keys {
			v, err := f.store.Get(k)
			if err != nil {
				return pathErr("rename", oldPath, err)
			}
			if err := f.store.Put(newKey+strings.TrimPrefix(k, oldKey), v); err != nil {
				return pathErr("rename", newPath, err)
			}
			moved = append(moved, k)
		}
	}
	if err := f.store.Put(newKey, raw); err != nil {
		return pathErr("rename", newPath, err)
	}
	for i := len(moved) - 1; i >= 0; i-- {
		if err := f.store.Delete(moved[i]); err != nil {
			return pathErr("rename", oldPath, err)
		}
	}
	if err := f.store.Delete(oldKey); err != nil {
		return pathErr("rename", oldPath, err)
	}
	return nil
}

// Stat describes the node at p.
func (f *FS) Stat(p string) (FileInfo, error) {
	key, err := f.key(p)
	if err != nil {
		return FileInfo{}, err
	}
	n, _, err := f.load(key)
	if err != nil {
		return FileInfo{}, pathErr("stat", p, err)
	}
	if n == nil {
		return FileInfo{}, pathErr("stat", p, ErrNotFound)
	}
	return newFileInfo(f.rel(key), n), nil
}

// Exists reports whether p names a file or directory.
func (f *FS) Exists(p string) bool {
	_, err := f.Stat(p)
	return err == nil
}

// IsDir reports whether p names a directory.
func (f *FS) IsDir(p string) bool {
	info, err := f.Stat(p)
	return err == nil && info.IsDir()
}

// ReadDir lists the direct children of a directory sorted by name.
func (f *FS) ReadDir(p string) ([]FileInfo, error) {
	key, err := f.key(p)
	if err != nil {
		return nil, err
	}
	n, _, err := f.load(key)
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}
	if n == nil {
		return nil, pathErr("readdir", p, ErrNotFound)
	}
	if !n.isDir() {
		return nil, pathErr("readdir", p, ErrNotDir)
	}
	kids, err := f.children(key)
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}
	out := make([]FileInfo, 0, len(kids))
	for _, k := range kids {
		child, _, err := f.load(k)
		if err != nil {
			return nil, pathErr("readdir", p, err)
		}
		if child == nil {
			continue
		}
		out = append(out, newFileInfo(f.rel(k), child))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// WalkFunc is called for every node visited by Walk. Returning fs.SkipDir
// for a directory skips its contents; fs.SkipAll stops the walk.
type WalkFunc func(p string, info FileInfo, err error) error

// Walk visits root and everything below it in lexical order.
func (f *FS) Walk(root string, fn WalkFunc) error {
	clean, err := Clean(root)
	if err != nil {
		return err
	}
	info, err := f.Stat(clean)
	if err != nil {
		err = fn(clean, FileInfo{}, err)
	} else {
		err = f.walk(clean, info, fn)
	}
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (f *FS) walk(p string, info FileInfo, fn WalkFunc) error {
	if err := fn(p, info, nil); err != nil {
		if info.IsDir() && errors.Is(err, fs.SkipDir) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}
	entries, err := f.ReadDir(p)
	if err != nil {
		return fn(p, info, err)
	}
	for _, e := range entries {
		if err := f.walk(Join(p, e.name), e, fn); err != nil {
			if errors.Is(err, fs.SkipDir) && !e.IsDir() {
				return nil
			}
			return err
		}
	}
	return nil
}

// CompareAndSwap replaces the content of the file at p only if it currently
// holds old. A nil old requires p to be absent; a nil data removes the file.
// Parent directories are created as for WriteFile.
func (f *FS) CompareAndSwap(p string, old, data []byte) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	cur, raw, err := f.load(key)
	if err != nil {
		return pathErr("swap", p, err)
	}
	if cur != nil && cur.isDir() {
		return pathErr("swap", p, ErrIsDir)
	}
	if old == nil && cur != nil {
		return pathErr("swap", p, ErrCASMismatch)
	}
	if old != nil && (cur == nil || !bytes.Equal(cur.data, old)) {
		return pathErr("swap", p, ErrCASMismatch)
	}
	if data != nil {
		if err := f.ensureParents(key, p); err != nil {
			return err
		}
	}
	if data == nil && cur == nil {
		return nil
	}
	var next []byte
	if data != nil {
		next = encodeNode(kindFile, f.now(), data)
	}
	if err := f.swap.CompareAndSwap(key, raw, next); err != nil {
		return pathErr("swap", p, err)
	}
	return nil
}

// lockedSwapper serializes swaps inside one process for stores that have no
// native compare-and-swap.
type lockedSwapper struct {
	mu    sync.Mutex
	store bytestore.Store
}

func (l *lockedSwapper) CompareAndSwap(key string, old, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, err := l.store.Get(key)
	exists := err == nil
	if err != nil && !errors.Is(err, bytestore.ErrNotFound) {
		return err
	}
	if (old == nil) == exists || (old != nil && !bytes.Equal(cur, old)) {
		return bytestore.ErrMismatch
	}
	if data == nil {
		return l.store.Delete(key)
	}
	return l.store.Put(key, data)
}
