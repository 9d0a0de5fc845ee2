package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// SortTreeEntries orders entries the way Git does: byte order on names,
// with directory names compared as if they ended in "/".
func SortTreeEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// MarshalTree serializes a TreeObj in Git's binary format. Each entry is
//
//	<mode> SP <name> NUL <20-byte id>
//
// and entries are sorted for deterministic output.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortTreeEntries(sorted)

	var buf bytes.Buffer
	for i, e := range sorted {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\x00") {
			return nil, fmt.Errorf("marshal tree: invalid entry name %q", e.Name)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		raw, err := hashToBytes(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		buf.WriteString(mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a TreeObj from Git's binary format.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing mode separator")
		}
		mode := normalizeTreeMode(string(data[:sp]))
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator")
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < 20 {
			return nil, fmt.Errorf("unmarshal tree: truncated id for %q", name)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: name,
			Mode: mode,
			Hash: Hash(hex.EncodeToString(data[:20])),
		})
		data = data[20:]
	}
	return tr, nil
}

// normalizeTreeMode maps legacy modes some servers still emit (for example
// 100664) onto the canonical set.
func normalizeTreeMode(mode string) string {
	switch mode {
	case TreeModeDir, "040000":
		return TreeModeDir
	case TreeModeExecutable, TreeModeSymlink, TreeModeSubmodule:
		return mode
	default:
		return TreeModeFile
	}
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj in Git's canonical text format:
//
//	tree H
//	parent H            (zero or more)
//	author A T Z
//	committer C T Z
//	<extra headers>
//	gpgsig S            (optional, continuation lines prefixed by a space)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s %d %s\n", c.Author, c.Timestamp, tzOrDefault(c.AuthorTimezone))

	committer, ts, tz := c.Committer, c.CommitterTimestamp, c.CommitterTimezone
	if committer == "" {
		committer, ts, tz = c.Author, c.Timestamp, c.AuthorTimezone
	}
	fmt.Fprintf(&buf, "committer %s %d %s\n", committer, ts, tzOrDefault(tz))

	for _, h := range c.ExtraHeaders {
		writeHeader(&buf, h.Key, h.Value)
	}
	if strings.TrimSpace(c.Signature) != "" {
		writeHeader(&buf, "gpgsig", strings.TrimRight(c.Signature, "\n"))
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(strings.ReplaceAll(value, "\n", "\n "))
	buf.WriteByte('\n')
}

func tzOrDefault(tz string) string {
	if tz == "" {
		return "+0000"
	}
	return tz
}

// UnmarshalCommit parses a CommitObj from its canonical form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	var header, message string
	if idx < 0 {
		header = strings.TrimRight(string(data), "\n")
	} else {
		header = string(data[:idx])
		message = string(data[idx+2:])
	}

	c := &CommitObj{Message: message}
	headers, err := parseHeaders(header)
	if err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	for _, h := range headers {
		switch h.Key {
		case "tree":
			c.TreeHash = Hash(h.Value)
		case "parent":
			c.Parents = append(c.Parents, Hash(h.Value))
		case "author":
			c.Author, c.Timestamp, c.AuthorTimezone, err = parseIdentLine(h.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
		case "committer":
			c.Committer, c.CommitterTimestamp, c.CommitterTimezone, err = parseIdentLine(h.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
		case "gpgsig":
			c.Signature = h.Value
		default:
			c.ExtraHeaders = append(c.ExtraHeaders, h)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}

func parseHeaders(header string) ([]Header, error) {
	var out []Header
	if header == "" {
		return out, nil
	}
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, " ") {
			if len(out) == 0 {
				return nil, fmt.Errorf("continuation line without header")
			}
			out[len(out)-1].Value += "\n" + line[1:]
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		out = append(out, Header{Key: key, Value: val})
	}
	return out, nil
}

// parseIdentLine splits "Name <email> 1700000000 +0100".
func parseIdentLine(v string) (string, int64, string, error) {
	gt := strings.LastIndexByte(v, '>')
	if gt < 0 {
		return "", 0, "", fmt.Errorf("malformed identity %q", v)
	}
	ident := v[:gt+1]
	fields := strings.Fields(v[gt+1:])
	if len(fields) == 0 {
		return ident, 0, "", nil
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}
	tz := ""
	if len(fields) > 1 {
		tz = fields[1]
	}
	return ident, ts, tz, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag returns the stored tag payload.
func MarshalTag(t *TagObj) []byte {
	out := make([]byte, len(t.Data))
	copy(out, t.Data)
	return out
}

// UnmarshalTag extracts the target of an annotated tag, keeping the payload
// verbatim.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	header := string(data)
	if idx >= 0 {
		header = string(data[:idx])
	}
	headers, err := parseHeaders(strings.TrimRight(header, "\n"))
	if err != nil {
		return nil, fmt.Errorf("unmarshal tag: %w", err)
	}
	t := &TagObj{Data: append([]byte(nil), data...)}
	for _, h := range headers {
		switch h.Key {
		case "object":
			t.TargetHash = Hash(h.Value)
		case "type":
			t.TargetType = ObjectType(h.Value)
		case "tag":
			t.Name = h.Value
		}
	}
	if t.TargetHash == "" {
		return nil, fmt.Errorf("unmarshal tag: missing object header")
	}
	return t, nil
}
