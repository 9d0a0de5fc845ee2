package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/odvcencio/sandgit/pkg/vfs"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrAmbiguousHash  = errors.New("ambiguous abbreviated object id")
)

// Store is a content-addressed object store laid out like Git's loose
// object directory: <gitDir>/objects/ab/cdef0123... Each object file holds
// the zlib-compressed envelope "type len\0content".
type Store struct {
	fs   *vfs.FS
	root string
}

// NewStore creates a Store for the repository metadata directory gitDir.
// The objects/ directory is created lazily on first write.
func NewStore(fsys *vfs.FS, gitDir string) *Store {
	return &Store{fs: fsys, root: gitDir}
}

func (s *Store) objectPath(h Hash) string {
	return s.root + "/objects/" + string(h[:2]) + "/" + string(h[2:])
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidateHash(string(h)) {
		return false
	}
	_, err := s.fs.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing content that
// is already present returns the same hash without touching the store.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	if s.Has(h) {
		return h, nil
	}

	compressed, err := compressObject(makeObjectEnvelope(objType, data))
	if err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", h, err)
	}
	if err := s.fs.WriteFile(s.objectPath(h), compressed, 0o444); err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Delete removes an object. Deleting an absent object is not an error.
func (s *Store) Delete(h Hash) error {
	if !ValidateHash(string(h)) {
		return fmt.Errorf("object delete: invalid id %q", h)
	}
	if err := s.fs.Remove(s.objectPath(h)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object delete %s: %w", h, err)
	}
	return nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidateHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrObjectNotFound)
	}
	raw, err := s.fs.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	envelope, err := decompressObject(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}
	return parseObjectEnvelope(envelope, h)
}

// ResolvePrefix expands an abbreviated hex id of at least four characters
// into the unique full id it names.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) < 4 || len(prefix) > HashSize || !isLowerHex(prefix) {
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrObjectNotFound)
	}
	if len(prefix) == HashSize {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrObjectNotFound)
	}
	entries, err := s.fs.ReadDir(s.root + "/objects/" + prefix[:2])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %q: %w", prefix, ErrObjectNotFound)
		}
		return "", fmt.Errorf("resolve %q: %w", prefix, err)
	}
	var found []Hash
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix[2:]) {
			found = append(found, Hash(prefix[:2]+e.Name()))
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrObjectNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("resolve %q: %w (%d candidates)", prefix, ErrAmbiguousHash, len(found))
	}
}

// List returns every stored object id in sorted order.
func (s *Store) List() ([]Hash, error) {
	var out []Hash
	err := s.fs.Walk(s.root+"/objects", func(p string, info vfs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		dir := vfs.Base(vfs.Dir(p))
		if h := Hash(dir + info.Name()); ValidateHash(string(h)) {
			out = append(out, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func makeObjectEnvelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	return append(out, data...)
}

func parseObjectEnvelope(raw []byte, h Hash) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, lenStr, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}
	return ObjectType(typ), content, nil
}

func compressObject(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressObject(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

// ReadTag reads an annotated tag.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	data, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(data)
}

// PeelToCommit follows annotated tags until it reaches a commit id.
func (s *Store) PeelToCommit(h Hash) (Hash, error) {
	for i := 0; i < 16; i++ {
		objType, data, err := s.Read(h)
		if err != nil {
			return "", err
		}
		switch objType {
		case TypeCommit:
			return h, nil
		case TypeTag:
			tag, err := UnmarshalTag(data)
			if err != nil {
				return "", err
			}
			h = tag.TargetHash
		default:
			return "", fmt.Errorf("object %s is a %s, not a commit", h, objType)
		}
	}
	return "", fmt.Errorf("object %s: tag chain too deep", h)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
