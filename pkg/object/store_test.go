package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/odvcencio/sandgit/pkg/bytestore"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

func TestHashObjectMatchesGit(t *testing.T) {
	tests := []struct {
		typ  ObjectType
		data string
		want Hash
	}{
		{TypeBlob, "", "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{TypeBlob, "hello\n", "ce013625030ba8dba906f756967f9e9ca394464a"},
		{TypeTree, "", EmptyTreeHash},
	}
	for _, tt := range tests {
		if got := HashObject(tt.typ, []byte(tt.data)); got != tt.want {
			t.Errorf("HashObject(%s, %q) = %s, want %s", tt.typ, tt.data, got, tt.want)
		}
	}
}

func tempStore(t *testing.T) (*Store, *vfs.FS) {
	t.Helper()
	fsys := vfs.New(bytestore.NewMemStore())
	return NewStore(fsys, "/repo/.git"), fsys
}

func TestStoreWriteRead(t *testing.T) {
	s, _ := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(h) != HashSize {
		t.Errorf("Hash length: got %d, want %d", len(h), HashSize)
	}

	gotType, gotData, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != TypeBlob {
		t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("Data: got %q, want %q", gotData, data)
	}
}

func TestStoreWriteIsIdempotent(t *testing.T) {
	s, fsys := tempStore(t)
	h1, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	info1, err := fsys.Stat(s.objectPath(h1))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write again: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1, h2)
	}
	info2, _ := fsys.Stat(s.objectPath(h1))
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatal("second write rewrote the object file")
	}
	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("store holds %d objects, want 1", len(all))
	}
}

func TestStoreReadMissing(t *testing.T) {
	s, _ := tempStore(t)
	_, _, err := s.Read(HashObject(TypeBlob, []byte("nope")))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Read missing: got %v, want ErrObjectNotFound", err)
	}
}

func TestStoreTypeMismatch(t *testing.T) {
	s, _ := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("x")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := s.ReadCommit(h); err == nil || !strings.Contains(err.Error(), "type mismatch") {
		t.Fatalf("ReadCommit on blob: got %v", err)
	}
}

func TestResolvePrefix(t *testing.T) {
	s, _ := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("prefix me")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := s.ResolvePrefix(string(h[:8]))
	if err != nil {
		t.Fatalf("ResolvePrefix: %v", err)
	}
	if got != h {
		t.Fatalf("ResolvePrefix = %s, want %s", got, h)
	}
	if _, err := s.ResolvePrefix("abc"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("short prefix: got %v", err)
	}
}

func TestWriteTreeFromFilesAndFlatten(t *testing.T) {
	s, _ := tempStore(t)
	blob := func(content string) Hash {
		h, err := s.WriteBlob(&Blob{Data: []byte(content)})
		if err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
		return h
	}
	files := []TreeFile{
		{Path: "README.md", Hash: blob("readme")},
		{Path: "pkg/util/util.go", Hash: blob("package util")},
		{Path: "pkg/main.go", Mode: TreeModeExecutable, Hash: blob("package main")},
	}
	root, err := s.WriteTreeFromFiles(files)
	if err != nil {
		t.Fatalf("WriteTreeFromFiles: %v", err)
	}
	again, err := s.WriteTreeFromFiles([]TreeFile{files[2], files[0], files[1]})
	if err != nil {
		t.Fatalf("WriteTreeFromFiles reordered: %v", err)
	}
	if root != again {
		t.Fatal("tree hash depends on input order")
	}

	flat, err := s.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(flat) != 3 {
		t.Fatalf("flattened %d files, want 3", len(flat))
	}
	wantPaths := []string{"README.md", "pkg/main.go", "pkg/util/util.go"}
	for i, f := range flat {
		if f.Path != wantPaths[i] {
			t.Errorf("flat[%d].Path = %q, want %q", i, f.Path, wantPaths[i])
		}
	}
	if flat[1].Mode != TreeModeExecutable {
		t.Errorf("mode = %q, want executable", flat[1].Mode)
	}

	entry, ok, err := s.TreeEntryAtPath(root, "pkg/util/util.go")
	if err != nil || !ok {
		t.Fatalf("TreeEntryAtPath: ok=%v err=%v", ok, err)
	}
	if entry.Hash != files[1].Hash {
		t.Fatalf("entry hash = %s, want %s", entry.Hash, files[1].Hash)
	}
	if _, ok, _ := s.TreeEntryAtPath(root, "pkg"); ok {
		t.Fatal("directory should not be returned as a file entry")
	}
}

func TestWriteTreeRejectsFileDirectoryClash(t *testing.T) {
	s, _ := tempStore(t)
	h, _ := s.WriteBlob(&Blob{Data: []byte("x")})
	_, err := s.WriteTreeFromFiles([]TreeFile{{Path: "a", Hash: h}, {Path: "a/b", Hash: h}})
	if err == nil {
		t.Fatal("expected clash error")
	}
}

func TestCollectMissingExcludesHaves(t *testing.T) {
	s, _ := tempStore(t)
	b1, _ := s.WriteBlob(&Blob{Data: []byte("one")})
	t1, _ := s.WriteTreeFromFiles([]TreeFile{{Path: "f", Hash: b1}})
	c1, _ := s.WriteCommit(&CommitObj{TreeHash: t1, Author: "A <a@x>", Message: "one\n"})

	b2, _ := s.WriteBlob(&Blob{Data: []byte("two")})
	t2, _ := s.WriteTreeFromFiles([]TreeFile{{Path: "f", Hash: b2}})
	c2, _ := s.WriteCommit(&CommitObj{TreeHash: t2, Parents: []Hash{c1}, Author: "A <a@x>", Message: "two\n"})

	got, err := s.CollectMissing([]Hash{c2}, []Hash{c1})
	if err != nil {
		t.Fatalf("CollectMissing: %v", err)
	}
	want := map[Hash]bool{c2: true, t2: true, b2: true}
	if len(got) != len(want) {
		t.Fatalf("got %d objects, want %d: %v", len(got), len(want), got)
	}
	for _, h := range got {
		if !want[h] {
			t.Fatalf("unexpected object %s", h)
		}
	}
}
