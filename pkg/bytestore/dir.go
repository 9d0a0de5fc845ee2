package bytestore

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	lockRetryDelay = 5 * time.Millisecond
	lockWaitLimit  = 2 * time.Second
)

// DirStore keeps one host file per key inside a single directory. Keys are
// path-escaped into flat file names so keys that are prefixes of each other
// never collide. Escaped names never start with a dot; dot names belong to
// the store's own temp and lock files.
type DirStore struct {
	root     string
	compress bool

	// mu orders swaps issued from this process; the lock file orders them
	// across processes sharing root.
	mu sync.Mutex
}

// DirOption configures a DirStore.
type DirOption func(*DirStore)

// WithCompression stores values as zstd frames.
func WithCompression(on bool) DirOption {
	return func(d *DirStore) { d.compress = on }
}

// OpenDir returns a DirStore rooted at root, creating the directory.
func OpenDir(root string, opts ...DirOption) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("open dir store: %w", err)
	}
	d := &DirStore{root: root}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *DirStore) keyPath(key string) string {
	return filepath.Join(d.root, escapeKey(key))
}

func (d *DirStore) lockPath(key string) string {
	return filepath.Join(d.root, ".lock-"+escapeKey(key))
}

func escapeKey(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

func (d *DirStore) Get(key string) ([]byte, error) {
	raw, err := os.ReadFile(d.keyPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return d.decode(key, raw)
}

func (d *DirStore) decode(key string, raw []byte) ([]byte, error) {
	if isZstdFrame(raw) {
		out, err := decompressZstd(raw)
		if err != nil {
			return nil, fmt.Errorf("get %q: decompress: %w", key, err)
		}
		return out, nil
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("get %q: empty record", key)
	}
	return raw[1:], nil
}

func (d *DirStore) encode(data []byte) ([]byte, error) {
	if d.compress {
		return compressZstd(data)
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, 0)
	return append(out, data...), nil
}

// Put writes data via temp file + rename so readers never observe a torn
// value.
func (d *DirStore) Put(key string, data []byte) error {
	raw, err := d.encode(data)
	if err != nil {
		return fmt.Errorf("put %q: compress: %w", key, err)
	}
	return d.writeAtomic(key, raw)
}

func (d *DirStore) writeAtomic(key string, raw []byte) error {
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("put %q: tmpfile: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("put %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("put %q: sync: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("put %q: close: %w", key, err)
	}
	if err := os.Rename(tmpName, d.keyPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("put %q: rename: %w", key, err)
	}
	return nil
}

func (d *DirStore) Delete(key string) error {
	if err := os.Remove(d.keyPath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (d *DirStore) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirStore) CompareAndSwap(key string, old, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	lockPath := d.lockPath(key)
	lock, err := acquireLock(lockPath)
	if err != nil {
		return fmt.Errorf("swap %q: lock: %w", key, err)
	}
	lock.Close()
	defer os.Remove(lockPath)

	cur, err := d.Get(key)
	exists := true
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		exists = false
	}
	if err := checkExpected(key, cur, exists, old); err != nil {
		return err
	}
	if data == nil {
		return d.Delete(key)
	}
	if exists && bytes.Equal(cur, data) {
		return nil
	}
	return d.Put(key, data)
}

func acquireLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(lockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(lockRetryDelay)
			continue
		}
		return nil, err
	}
}
