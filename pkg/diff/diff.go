// Package diff computes line-level differences between two versions of a
// file and groups them into unified-diff hunks.
package diff

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/sandgit/pkg/diff3"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// maxTableCells bounds the LCS table. Inputs whose trimmed middle exceeds it
// fall back to the shortest-edit-script matcher.
const maxTableCells = 1 << 22

// ErrPatchMismatch is returned by Apply when a hunk does not match the input.
var ErrPatchMismatch = errors.New("patch does not apply")

// LineKind classifies a line within a hunk.
type LineKind int

const (
	Context LineKind = iota
	Delete
	Add
)

func (k LineKind) prefix() byte {
	switch k {
	case Delete:
		return '-'
	case Add:
		return '+'
	default:
		return ' '
	}
}

// Line is one line of a hunk. Text keeps its trailing newline, if any.
// OldLine and NewLine are 1-based and zero when the line is absent on that side.
type Line struct {
	Kind    LineKind
	Text    string
	OldLine int
	NewLine int
}

// Hunk is a contiguous group of changes with surrounding context. When
// OldLines is zero, OldStart is the line after which the hunk applies;
// likewise for NewStart.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Lines diffs old against new with the default context.
func Lines(old, new []byte) []Hunk {
	hunks, _ := LinesContext(context.Background(), old, new, DefaultContext)
	return hunks
}

// LinesContext diffs old against new keeping n lines of context around each
// change. Identical inputs produce no hunks.
func LinesContext(ctx context.Context, old, new []byte, n int) ([]Hunk, error) {
	if n < 0 {
		n = 0
	}
	a := diff3.SplitLines(old)
	b := diff3.SplitLines(new)
	script, err := editScript(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return group(script, n), nil
}

// editScript returns the full annotated line sequence from a to b.
func editScript(ctx context.Context, a, b []string) ([]Line, error) {
	pre := 0
	for pre < len(a) && pre < len(b) && a[pre] == b[pre] {
		pre++
	}
	suf := 0
	for suf < len(a)-pre && suf < len(b)-pre && a[len(a)-1-suf] == b[len(b)-1-suf] {
		suf++
	}

	out := make([]Line, 0, len(a)+len(b)-pre-suf)
	for i := 0; i < pre; i++ {
		out = append(out, Line{Kind: Context, Text: a[i], OldLine: i + 1, NewLine: i + 1})
	}

	midA, midB := a[pre:len(a)-suf], b[pre:len(b)-suf]
	var ops []diff3.DiffOp
	if len(midA)*len(midB) <= maxTableCells {
		var err error
		ops, err = lcsOps(ctx, midA, midB)
		if err != nil {
			return nil, err
		}
	} else {
		ops = diff3.MyersDiff(midA, midB)
	}

	oi, ni := pre+1, pre+1
	for _, op := range ops {
		switch op.Type {
		case diff3.Equal:
			out = append(out, Line{Kind: Context, Text: op.Line, OldLine: oi, NewLine: ni})
			oi++
			ni++
		case diff3.Delete:
			out = append(out, Line{Kind: Delete, Text: op.Line, OldLine: oi})
			oi++
		case diff3.Insert:
			out = append(out, Line{Kind: Add, Text: op.Line, NewLine: ni})
			ni++
		}
	}

	for i := 0; i < suf; i++ {
		out = append(out, Line{Kind: Context, Text: a[len(a)-suf+i], OldLine: oi, NewLine: ni})
		oi++
		ni++
	}
	return out, nil
}

// lcsOps runs the classic longest-common-subsequence matcher. The walk
// prefers the earliest available match and emits deletions before
// insertions, so equal inputs always yield the same script.
func lcsOps(ctx context.Context, a, b []string) ([]diff3.DiffOp, error) {
	n, m := len(a), len(b)
	w := m + 1
	table := make([]int32, (n+1)*w)
	for i := n - 1; i >= 0; i-- {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i*w+j] = table[(i+1)*w+j+1] + 1
			} else if down, right := table[(i+1)*w+j], table[i*w+j+1]; down >= right {
				table[i*w+j] = down
			} else {
				table[i*w+j] = right
			}
		}
	}

	ops := make([]diff3.DiffOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, diff3.DiffOp{Type: diff3.Equal, Line: a[i]})
			i++
			j++
		case table[(i+1)*w+j] >= table[i*w+j+1]:
			ops = append(ops, diff3.DiffOp{Type: diff3.Delete, Line: a[i]})
			i++
		default:
			ops = append(ops, diff3.DiffOp{Type: diff3.Insert, Line: b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, diff3.DiffOp{Type: diff3.Delete, Line: a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, diff3.DiffOp{Type: diff3.Insert, Line: b[j]})
	}
	return normalize(ops), nil
}

// normalize moves deletions ahead of insertions inside each changed run.
func normalize(ops []diff3.DiffOp) []diff3.DiffOp {
	out := make([]diff3.DiffOp, 0, len(ops))
	var adds []diff3.DiffOp
	for _, op := range ops {
		switch op.Type {
		case diff3.Delete:
			out = append(out, op)
		case diff3.Insert:
			adds = append(adds, op)
		default:
			out = append(out, adds...)
			adds = adds[:0]
			out = append(out, op)
		}
	}
	return append(out, adds...)
}

// group splits an annotated script into hunks. Changes separated by at most
// 2n unchanged lines share a hunk.
func group(script []Line, n int) []Hunk {
	var changes []int
	for i, l := range script {
		if l.Kind != Context {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	start := max(changes[0]-n, 0)
	end := changes[0]
	for _, c := range changes[1:] {
		if c-end-1 > 2*n {
			hunks = append(hunks, makeHunk(script, start, min(end+n+1, len(script))))
			start = c - n
		}
		end = c
	}
	hunks = append(hunks, makeHunk(script, start, min(end+n+1, len(script))))
	return hunks
}

func makeHunk(script []Line, from, to int) Hunk {
	lines := append([]Line(nil), script[from:to]...)
	h := Hunk{Lines: lines}
	for _, l := range lines {
		if l.Kind != Add {
			if h.OldLines == 0 {
				h.OldStart = l.OldLine
			}
			h.OldLines++
		}
		if l.Kind != Delete {
			if h.NewLines == 0 {
				h.NewStart = l.NewLine
			}
			h.NewLines++
		}
	}
	if h.OldLines == 0 {
		h.OldStart = precedingLine(script, from, func(l Line) int { return l.OldLine })
	}
	if h.NewLines == 0 {
		h.NewStart = precedingLine(script, from, func(l Line) int { return l.NewLine })
	}
	return h
}

func precedingLine(script []Line, from int, pick func(Line) int) int {
	for i := from - 1; i >= 0; i-- {
		if v := pick(script[i]); v > 0 {
			return v
		}
	}
	return 0
}

// Apply applies hunks, in order, to old and returns the result.
func Apply(old []byte, hunks []Hunk) ([]byte, error) {
	src := diff3.SplitLines(old)
	var out []byte
	pos := 0
	for idx, h := range hunks {
		at := h.OldStart - 1
		if h.OldLines == 0 {
			at = h.OldStart
		}
		if at < pos || at > len(src) {
			return nil, fmt.Errorf("hunk %d: %w: start %d out of range", idx+1, ErrPatchMismatch, h.OldStart)
		}
		for ; pos < at; pos++ {
			out = append(out, src[pos]...)
		}
		for _, l := range h.Lines {
			switch l.Kind {
			case Context, Delete:
				if pos >= len(src) || src[pos] != l.Text {
					return nil, fmt.Errorf("hunk %d: %w at line %d", idx+1, ErrPatchMismatch, pos+1)
				}
				if l.Kind == Context {
					out = append(out, l.Text...)
				}
				pos++
			case Add:
				out = append(out, l.Text...)
			}
		}
	}
	for ; pos < len(src); pos++ {
		out = append(out, src[pos]...)
	}
	return out, nil
}
