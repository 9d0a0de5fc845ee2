package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

const reflogAppendAttempts = 8

// ReflogEntry is one line of a ref's log, in git's on-disk format:
// "<old> <new> <ident> <unix> <tz>\t<message>".
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Identity  string
	Timestamp int64
	Timezone  string
	Message   string
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	if oldHash == "" {
		oldHash = object.ZeroHash
	}
	if newHash == "" {
		newHash = object.ZeroHash
	}
	now := r.now()
	line := fmt.Sprintf("%s %s %s %d %s\t%s\n", oldHash, newHash, r.reflogIdentity(), now.Unix(), formatTimezoneOffset(now), oneLine(reason))

	// Appends race with other writers of the same log, so retry the swap.
	path := r.gitPath("logs/" + ref)
	for attempt := 0; attempt < reflogAppendAttempts; attempt++ {
		cur, err := r.FS.ReadFile(path)
		var old []byte
		switch {
		case err == nil:
			old = cur
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("reflog read: %w", err)
		}
		next := append(append([]byte{}, old...), line...)
		err = r.FS.CompareAndSwap(path, old, next)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vfs.ErrCASMismatch) {
			return fmt.Errorf("reflog write: %w", err)
		}
	}
	return fmt.Errorf("reflog write %s: %w", ref, ErrRefConflict)
}

// ReadReflog returns up to limit entries of a ref's log, newest first. An
// empty ref or "HEAD" reads HEAD's own log. Short names are taken as
// branches.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName := resolveReflogRefName(ref)
	data, err := r.FS.ReadFile(r.gitPath("logs/" + refName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	var entries []ReflogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if e, ok := parseReflogLine(refName, line); ok {
			entries = append(entries, e)
		}
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	head, msg, _ := strings.Cut(line, "\t")
	if len(head) < 2*object.HashSize+2 {
		return ReflogEntry{}, false
	}
	oldHash := head[:object.HashSize]
	newHash := head[object.HashSize+1 : 2*object.HashSize+1]
	rest := head[2*object.HashSize+2:]

	// The identity may contain spaces; timestamp and zone are the last two fields.
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   object.Hash(oldHash),
		NewHash:   object.Hash(newHash),
		Identity:  strings.Join(fields[:len(fields)-2], " "),
		Timestamp: ts,
		Timezone:  fields[len(fields)-1],
		Message:   msg,
	}, true
}

func resolveReflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == "HEAD":
		return "HEAD"
	case strings.HasPrefix(ref, "refs/"):
		return ref
	default:
		return "refs/heads/" + ref
	}
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
