package object

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

const (
	testHashA Hash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testHashB Hash = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testHashC Hash = "cccccccccccccccccccccccccccccccccccccccc"
)

func TestMarshalUnmarshalBlob(t *testing.T) {
	orig := &Blob{Data: []byte("hello world\nline two")}
	got, err := UnmarshalBlob(MarshalBlob(orig))
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("Blob round-trip mismatch: got %q, want %q", got.Data, orig.Data)
	}
}

func TestMarshalTreeGitOrder(t *testing.T) {
	tr := &TreeObj{Entries: []TreeEntry{
		{Name: "foo.txt", Mode: TreeModeFile, Hash: testHashA},
		{Name: "foo", Mode: TreeModeDir, Hash: testHashB},
		{Name: "foo-bar", Mode: TreeModeFile, Hash: testHashC},
	}}
	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	// "foo/" sorts after "foo-bar" and "foo.txt" because '/' > '-' and '.'.
	var names []string
	for _, e := range got.Entries {
		names = append(names, e.Name)
	}
	want := []string{"foo-bar", "foo.txt", "foo"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("order = %v, want %v", names, want)
	}
	if !got.Entries[2].IsDir() {
		t.Fatal("foo should be a directory entry")
	}
}

func TestMarshalTreeRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry TreeEntry
	}{
		{"slash", TreeEntry{Name: "a/b", Hash: testHashA}},
		{"empty", TreeEntry{Name: "", Hash: testHashA}},
		{"short hash", TreeEntry{Name: "x", Hash: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MarshalTree(&TreeObj{Entries: []TreeEntry{tt.entry}}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMarshalUnmarshalCommit(t *testing.T) {
	orig := &CommitObj{
		TreeHash:           testHashA,
		Parents:            []Hash{testHashB, testHashC},
		Author:             "Ada Lovelace <ada@example.com>",
		Timestamp:          1700000000,
		AuthorTimezone:     "+0100",
		Committer:          "Bot <bot@example.com>",
		CommitterTimestamp: 1700000100,
		CommitterTimezone:  "-0500",
		ExtraHeaders:       []Header{{Key: "encoding", Value: "UTF-8"}},
		Signature:          "-----BEGIN SSH SIGNATURE-----\nAAAA\n-----END SSH SIGNATURE-----",
		Message:            "subject\n\nbody line\n",
	}
	data := MarshalCommit(orig)
	if !strings.Contains(string(data), "\ngpgsig -----BEGIN SSH SIGNATURE-----\n AAAA\n -----END") {
		t.Fatalf("signature not written as continuation lines:\n%s", data)
	}
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, orig)
	}
	if !bytes.Equal(MarshalCommit(got), data) {
		t.Fatal("re-marshal is not byte identical")
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{TreeHash: testHashA, Author: "A <a@x>", Signature: "sig", Message: "m\n"}
	payload := CommitSigningPayload(c)
	if strings.Contains(string(payload), "gpgsig") {
		t.Fatalf("payload contains signature: %s", payload)
	}
	if c.Signature != "sig" {
		t.Fatal("CommitSigningPayload mutated its argument")
	}
}

func TestUnmarshalTag(t *testing.T) {
	data := []byte("object " + string(testHashA) + "\ntype commit\ntag v1.0\ntagger T <t@x> 1 +0000\n\nrelease\n")
	tag, err := UnmarshalTag(data)
	if err != nil {
		t.Fatalf("UnmarshalTag: %v", err)
	}
	if tag.TargetHash != testHashA || tag.TargetType != TypeCommit || tag.Name != "v1.0" {
		t.Fatalf("tag = %+v", tag)
	}
	if !bytes.Equal(MarshalTag(tag), data) {
		t.Fatal("tag payload not preserved")
	}
}
