package object

// Hash is a 40-character lowercase hex-encoded SHA-1 object id.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

const (
	// Tree mode constants matching Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeSubmodule  = "160000"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TagObj preserves an annotated tag payload while tracking the object it
// points at.
type TagObj struct {
	TargetHash Hash
	TargetType ObjectType
	Name       string
	Data       []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds tree entries in Git order.
type TreeObj struct {
	Entries []TreeEntry
}

// Header is an extra commit header preserved verbatim (mergetag,
// encoding, ...). Multi-line values keep their embedded newlines.
type Header struct {
	Key   string
	Value string
}

// CommitObj represents a commit pointing to a tree with metadata.
//
// Author and Committer hold the "Name <email>" identity; timestamps are Unix
// seconds and timezones the "+hhmm" offset Git writes.
type CommitObj struct {
	TreeHash           Hash
	Parents            []Hash
	Author             string
	Timestamp          int64
	AuthorTimezone     string
	Committer          string
	CommitterTimestamp int64
	CommitterTimezone  string
	ExtraHeaders       []Header
	Signature          string
	Message            string
}
