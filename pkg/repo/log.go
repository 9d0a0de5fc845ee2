package repo

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/sandgit/pkg/object"
)

// LogEntry is one commit yielded by a LogIter.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// LogIter walks first-parent history lazily. It is finite and cannot be
// restarted: after io.EOF every further Next returns ErrIterExhausted.
type LogIter struct {
	r         *Repo
	next      object.Hash
	remaining int // < 0 means unbounded
	done      bool
}

// Log starts a first-parent walk at rev (HEAD when empty), yielding at most
// depth commits; depth <= 0 walks to the root. An unborn HEAD yields an
// iterator that is already at its end.
func (r *Repo) Log(rev string, depth int) (*LogIter, error) {
	if rev == "" {
		rev = "HEAD"
	}
	it := &LogIter{r: r, remaining: depth}
	if depth <= 0 {
		it.remaining = -1
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		if rev == "HEAD" && errors.Is(err, ErrUnborn) {
			return it, nil
		}
		return nil, fmt.Errorf("log: %w", err)
	}
	it.next = h
	return it, nil
}

// Next returns the next commit, io.EOF at the end of history or depth, and
// ErrIterExhausted once EOF has been returned.
func (it *LogIter) Next() (*LogEntry, error) {
	if it.done {
		return nil, ErrIterExhausted
	}
	if it.next == "" || it.remaining == 0 {
		it.done = true
		return nil, io.EOF
	}
	c, err := it.r.Store.ReadCommit(it.next)
	if err != nil {
		it.done = true
		return nil, fmt.Errorf("log: read commit %s: %w", it.next.Short(), err)
	}
	e := &LogEntry{Hash: it.next, Commit: c}
	it.next = ""
	if len(c.Parents) > 0 {
		it.next = c.Parents[0]
	}
	if it.remaining > 0 {
		it.remaining--
	}
	return e, nil
}

// Collect drains the iterator.
func (it *LogIter) Collect() ([]*LogEntry, error) {
	var out []*LogEntry
	for {
		e, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

// FormatCommitTime renders a commit timestamp the way git log does, in the
// commit's own timezone ("+hhmm").
func FormatCommitTime(unix int64, tz string) string {
	loc := time.UTC
	if len(tz) == 5 && (tz[0] == '+' || tz[0] == '-') {
		hh, errH := strconv.Atoi(tz[1:3])
		mm, errM := strconv.Atoi(tz[3:5])
		if errH == nil && errM == nil {
			offset := hh*3600 + mm*60
			if tz[0] == '-' {
				offset = -offset
			}
			loc = time.FixedZone(tz, offset)
		}
	}
	return time.Unix(unix, 0).In(loc).Format("Mon Jan 2 15:04:05 2006 -0700")
}

// WriteCommitHeader prints a commit's id, parents, author, date and
// indented message the way git log does.
func WriteCommitHeader(w io.Writer, h object.Hash, c *object.CommitObj) {
	fmt.Fprintf(w, "commit %s\n", h)
	if len(c.Parents) > 1 {
		short := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			short[i] = p.Short()
		}
		fmt.Fprintf(w, "Merge: %s\n", strings.Join(short, " "))
	}
	fmt.Fprintf(w, "Author: %s\n", c.Author)
	fmt.Fprintf(w, "Date:   %s\n\n", FormatCommitTime(c.Timestamp, c.AuthorTimezone))
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
