package diff3

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func renderOps(ops []DiffOp) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		mark := "="
		switch op.Type {
		case Insert:
			mark = "+"
		case Delete:
			mark = "-"
		}
		parts[i] = mark + strings.TrimSuffix(op.Line, "\n")
	}
	return strings.Join(parts, " ")
}

func TestMyersDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want string
	}{
		{"both empty", nil, nil, ""},
		{"insert all", nil, []string{"x", "y"}, "+x +y"},
		{"delete all", []string{"x"}, nil, "-x"},
		{"identical", []string{"a", "b"}, []string{"a", "b"}, "=a =b"},
		{"replace deletes first", []string{"a"}, []string{"b"}, "-a +b"},
		{"mixed", []string{"a", "b", "c"}, []string{"a", "c", "d"}, "=a -b =c +d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderOps(MyersDiff(tt.a, tt.b)); got != tt.want {
				t.Fatalf("MyersDiff = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMyersDiffReconstructsBothSides(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a", "b", "c", "d"}
	randomLines := func() []string {
		out := make([]string, rng.Intn(12))
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return out
	}
	for i := 0; i < 200; i++ {
		a, b := randomLines(), randomLines()
		var gotA, gotB []string
		for _, op := range MyersDiff(a, b) {
			if op.Type != Insert {
				gotA = append(gotA, op.Line)
			}
			if op.Type != Delete {
				gotB = append(gotB, op.Line)
			}
		}
		if strings.Join(gotA, ",") != strings.Join(a, ",") || strings.Join(gotB, ",") != strings.Join(b, ",") {
			t.Fatalf("edit script for %q -> %q rebuilt %q -> %q", a, b, gotA, gotB)
		}
	}
}

func TestLineDiffKeepsTerminators(t *testing.T) {
	got := renderOps(LineDiff([]byte("one\ntwo\n"), []byte("one\nthree\n")))
	if got != "=one -two +three" {
		t.Fatalf("LineDiff = %q", got)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name               string
		base, ours, theirs string
		want               string
		conflict           bool
	}{
		{
			name: "ours only",
			base: "a\nb\nc\n", ours: "a\nB\nc\n", theirs: "a\nb\nc\n",
			want: "a\nB\nc\n",
		},
		{
			name: "theirs only",
			base: "a\nb\nc\n", ours: "a\nb\nc\n", theirs: "a\nb\nC\n",
			want: "a\nb\nC\n",
		},
		{
			name: "separate regions",
			base: "a\nb\nc\nd\ne\n", ours: "A\nb\nc\nd\ne\n", theirs: "a\nb\nc\nd\nE\n",
			want: "A\nb\nc\nd\nE\n",
		},
		{
			name: "same change on both sides",
			base: "a\nb\n", ours: "a\nX\n", theirs: "a\nX\n",
			want: "a\nX\n",
		},
		{
			name: "same deletion on both sides",
			base: "a\nb\nc\n", ours: "a\nc\n", theirs: "a\nc\n",
			want: "a\nc\n",
		},
		{
			name: "inserts at opposite ends",
			base: "m\n", ours: "top\nm\n", theirs: "m\nbottom\n",
			want: "top\nm\nbottom\n",
		},
		{
			name: "ours empties the file",
			base: "a\n", ours: "", theirs: "a\n",
			want: "",
		},
		{
			name: "same addition to an empty base",
			base: "", ours: "x\n", theirs: "x\n",
			want: "x\n",
		},
		{
			name: "all empty",
			want: "",
		},
		{
			name: "missing final newline survives",
			base: "a\nb\nc", ours: "A\nb\nc", theirs: "a\nb\nc",
			want: "A\nb\nc",
		},
		{
			name: "competing edits",
			base: "a\nb\nc\n", ours: "a\nO\nc\n", theirs: "a\nT\nc\n",
			want:     "a\n<<<<<<< ours\nO\n=======\nT\n>>>>>>> theirs\nc\n",
			conflict: true,
		},
		{
			name: "delete against modify",
			base: "a\nb\nc\n", ours: "a\nc\n", theirs: "a\nB\nc\n",
			want:     "a\n<<<<<<< ours\n=======\nB\n>>>>>>> theirs\nc\n",
			conflict: true,
		},
		{
			name: "different additions to an empty base",
			base: "", ours: "x\n", theirs: "y\n",
			want:     "<<<<<<< ours\nx\n=======\ny\n>>>>>>> theirs\n",
			conflict: true,
		},
		{
			name: "unterminated sides are closed inside markers",
			base: "a", ours: "b", theirs: "c",
			want:     "<<<<<<< ours\nb\n=======\nc\n>>>>>>> theirs\n",
			conflict: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Merge([]byte(tt.base), []byte(tt.ours), []byte(tt.theirs))
			if string(r.Merged) != tt.want {
				t.Fatalf("merged = %q, want %q", r.Merged, tt.want)
			}
			if r.HasConflicts != tt.conflict {
				t.Fatalf("HasConflicts = %v, want %v", r.HasConflicts, tt.conflict)
			}
		})
	}
}

func TestMergeLabeledMarkers(t *testing.T) {
	r := MergeLabeled([]byte("x\n"), []byte("left\n"), []byte("right\n"), Labels{Ours: "HEAD", Theirs: "feature"})
	want := "<<<<<<< HEAD\nleft\n=======\nright\n>>>>>>> feature\n"
	if string(r.Merged) != want {
		t.Fatalf("merged = %q, want %q", r.Merged, want)
	}
}

func TestMergeHunks(t *testing.T) {
	r := Merge([]byte("a\nb\nc\n"), []byte("a\nO\nc\n"), []byte("a\nT\nc\n"))
	if len(r.Hunks) != 3 {
		t.Fatalf("got %d hunks, want 3: %+v", len(r.Hunks), r.Hunks)
	}
	h := r.Hunks[1]
	if !h.Conflict || h.BaseStart != 1 || h.BaseEnd != 2 {
		t.Fatalf("conflict hunk = %+v", h)
	}
	if r.Hunks[0].Conflict || r.Hunks[2].Conflict {
		t.Fatalf("stable hunks flagged as conflicts: %+v", r.Hunks)
	}
}

func TestMergeLargeFile(t *testing.T) {
	base := numberedLines(1000)
	ours := replaceLine(base, 50, "ours edit")
	theirs := replaceLine(base, 950, "theirs edit")

	r := Merge(base, ours, theirs)
	if r.HasConflicts {
		t.Fatal("distant edits should merge cleanly")
	}
	want := replaceLine(ours, 950, "theirs edit")
	if string(r.Merged) != string(want) {
		t.Fatal("merged output does not carry both edits")
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\nb", []string{"a\n", "b"}},
		{"\n\n", []string{"\n", "\n"}},
	}
	for _, tt := range tests {
		got := SplitLines([]byte(tt.in))
		if fmt.Sprintf("%q", got) != fmt.Sprintf("%q", tt.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func numberedLines(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return []byte(b.String())
}

func replaceLine(src []byte, idx int, text string) []byte {
	lines := SplitLines(src)
	out := make([]string, len(lines))
	copy(out, lines)
	out[idx] = text + "\n"
	return []byte(strings.Join(out, ""))
}
