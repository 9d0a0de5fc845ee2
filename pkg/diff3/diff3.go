// Package diff3 performs line-based three-way merges of text content.
package diff3

import (
	"bytes"
	"strings"
)

// Hunk is one region of the merge output. A stable hunk copies base lines
// unchanged; an unstable hunk records what each side did to the region.
type Hunk struct {
	BaseStart, BaseEnd int
	Base               []string
	Ours               []string
	Theirs             []string
	Conflict           bool
}

// Result is the outcome of a three-way merge.
type Result struct {
	Merged       []byte
	HasConflicts bool
	Hunks        []Hunk
}

// Labels name the sides in conflict markers.
type Labels struct {
	Ours   string
	Theirs string
}

// DefaultLabels are used by Merge.
var DefaultLabels = Labels{Ours: "ours", Theirs: "theirs"}

// LineDiff diffs two byte slices line by line.
func LineDiff(a, b []byte) []DiffOp {
	return MyersDiff(SplitLines(a), SplitLines(b))
}

// Merge merges ours and theirs against base using the default labels.
func Merge(base, ours, theirs []byte) Result {
	return MergeLabeled(base, ours, theirs, DefaultLabels)
}

// MergeLabeled merges ours and theirs against base. Regions changed on only
// one side take that side; regions changed identically on both sides take
// either. Anything else is a conflict, written with markers carrying labels.
func MergeLabeled(base, ours, theirs []byte, labels Labels) Result {
	baseLines := SplitLines(base)
	oursLines := SplitLines(ours)
	theirsLines := SplitLines(theirs)

	hunks := buildHunks(baseLines, oursLines, theirsLines)

	var out bytes.Buffer
	res := Result{Hunks: hunks}
	for _, h := range hunks {
		switch {
		case !h.Conflict && isStable(h):
			writeLines(&out, h.Base)
		case !h.Conflict:
			writeLines(&out, resolved(h))
		default:
			res.HasConflicts = true
			writeConflict(&out, h, labels)
		}
	}
	res.Merged = out.Bytes()
	return res
}

// SplitLines splits content into lines, keeping each line's terminator.
// A final line without a newline is kept as-is.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	lines := make([]string, 0, strings.Count(s, "\n")+1)
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

// matchIndex maps each base line index to the index of the line it is
// aligned with in other, or -1 when that base line was changed.
func matchIndex(base, other []string) []int {
	match := make([]int, len(base))
	for i := range match {
		match[i] = -1
	}
	bi, oi := 0, 0
	for _, op := range MyersDiff(base, other) {
		switch op.Type {
		case Equal:
			match[bi] = oi
			bi++
			oi++
		case Delete:
			bi++
		case Insert:
			oi++
		}
	}
	return match
}

func buildHunks(base, ours, theirs []string) []Hunk {
	mo := matchIndex(base, ours)
	mt := matchIndex(base, theirs)

	var hunks []Hunk
	b, o, t := 0, 0, 0
	for {
		// Extend a stable run while all three agree in lockstep.
		start := b
		for b < len(base) && mo[b] == o && mt[b] == t {
			b++
			o++
			t++
		}
		if b > start {
			hunks = append(hunks, Hunk{BaseStart: start, BaseEnd: b, Base: base[start:b], Ours: ours[o-(b-start) : o], Theirs: theirs[t-(b-start) : t]})
		}
		if b >= len(base) && o >= len(ours) && t >= len(theirs) {
			break
		}

		// Find the next base line both sides still carry.
		next := b
		for next < len(base) && (mo[next] < 0 || mt[next] < 0) {
			next++
		}
		oEnd, tEnd := len(ours), len(theirs)
		if next < len(base) {
			oEnd, tEnd = mo[next], mt[next]
		}
		h := Hunk{
			BaseStart: b,
			BaseEnd:   next,
			Base:      base[b:next],
			Ours:      ours[o:oEnd],
			Theirs:    theirs[t:tEnd],
		}
		h.Conflict = !linesEqual(h.Ours, h.Base) && !linesEqual(h.Theirs, h.Base) && !linesEqual(h.Ours, h.Theirs)
		hunks = append(hunks, h)
		b, o, t = next, oEnd, tEnd
	}
	return hunks
}

func isStable(h Hunk) bool {
	return linesEqual(h.Base, h.Ours) && linesEqual(h.Base, h.Theirs)
}

func resolved(h Hunk) []string {
	if linesEqual(h.Ours, h.Base) {
		return h.Theirs
	}
	return h.Ours
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
	}
}

func writeSide(buf *bytes.Buffer, lines []string) {
	writeLines(buf, lines)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		buf.WriteByte('\n')
	}
}

func writeConflict(buf *bytes.Buffer, h Hunk, labels Labels) {
	buf.WriteString("<<<<<<< " + labels.Ours + "\n")
	writeSide(buf, h.Ours)
	buf.WriteString("=======\n")
	writeSide(buf, h.Theirs)
	buf.WriteString(">>>>>>> " + labels.Theirs + "\n")
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
