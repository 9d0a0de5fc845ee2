package diff

import (
	"bytes"
	"fmt"
	"strings"
)

const noNewline = "\\ No newline at end of file\n"

// FormatUnified renders hunks as a unified diff body with ---/+++ headers.
// An empty path is written as /dev/null.
func FormatUnified(oldPath, newPath string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", sidePath("a/", oldPath))
	fmt.Fprintf(&b, "+++ %s\n", sidePath("b/", newPath))
	for _, h := range hunks {
		writeHunk(&b, h)
	}
	return b.String()
}

func sidePath(prefix, p string) string {
	if p == "" {
		return "/dev/null"
	}
	return prefix + p
}

func writeHunk(b *strings.Builder, h Hunk) {
	fmt.Fprintf(b, "@@ -%s +%s @@\n", rangeSpec(h.OldStart, h.OldLines), rangeSpec(h.NewStart, h.NewLines))
	for _, l := range h.Lines {
		b.WriteByte(l.Kind.prefix())
		b.WriteString(l.Text)
		if !strings.HasSuffix(l.Text, "\n") {
			b.WriteByte('\n')
			b.WriteString(noNewline)
		}
	}
}

func rangeSpec(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// IsBinary reports whether content looks binary: it contains a NUL byte in
// its first 8000 bytes.
func IsBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// Unified produces a complete git-style diff for one file, including the
// diff --git header. Binary content is summarized rather than diffed.
func Unified(c FileChange, old, new []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", c.Path, c.Path)
	switch c.Status {
	case Added:
		fmt.Fprintf(&b, "new file mode %s\n", c.NewMode)
	case Deleted:
		fmt.Fprintf(&b, "deleted file mode %s\n", c.OldMode)
	default:
		if c.OldMode != c.NewMode {
			fmt.Fprintf(&b, "old mode %s\nnew mode %s\n", c.OldMode, c.NewMode)
		}
	}
	oldPath, newPath := c.Path, c.Path
	if c.Status == Added {
		oldPath = ""
	}
	if c.Status == Deleted {
		newPath = ""
	}
	if IsBinary(old) || IsBinary(new) {
		fmt.Fprintf(&b, "Binary files %s and %s differ\n", sidePath("a/", oldPath), sidePath("b/", newPath))
		return b.String()
	}
	b.WriteString(FormatUnified(oldPath, newPath, Lines(old, new)))
	return b.String()
}
