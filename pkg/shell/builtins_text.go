package shell

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/odvcencio/sandgit/pkg/vfs"
)

// splitLines breaks data into lines without their terminators. A trailing
// newline does not start an extra empty line.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.Split(s, "\n")
}

func (in *Interpreter) headTail(c *call, head bool) error {
	set := c.flagSet()
	n := set.IntP("lines", "n", 10, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if *n < 0 {
		return usagef("invalid number of lines: %d", *n)
	}
	if len(args) == 0 {
		return usagef("missing file operand")
	}
	for i, arg := range args {
		if len(args) > 1 {
			if i > 0 {
				fmt.Fprintln(c.stdout)
			}
			fmt.Fprintf(c.stdout, "==> %s <==\n", arg)
		}
		data, err := in.readFile(c, arg)
		if err != nil {
			c.report(err)
			return exitStatus(1)
		}
		lines := splitLines(data)
		if head && len(lines) > *n {
			lines = lines[:*n]
		} else if !head && len(lines) > *n {
			lines = lines[len(lines)-*n:]
		}
		for _, l := range lines {
			fmt.Fprintln(c.stdout, l)
		}
	}
	return nil
}

func (in *Interpreter) wc(c *call) error {
	set := c.flagSet()
	lines := set.BoolP("lines", "l", false, "")
	words := set.BoolP("words", "w", false, "")
	bytesFlag := set.BoolP("bytes", "c", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return usagef("missing file operand")
	}
	if !*lines && !*words && !*bytesFlag {
		*lines, *words, *bytesFlag = true, true, true
	}

	row := func(l, w, b int, name string) {
		var cols []string
		if *lines {
			cols = append(cols, fmt.Sprintf("%d", l))
		}
		if *words {
			cols = append(cols, fmt.Sprintf("%d", w))
		}
		if *bytesFlag {
			cols = append(cols, fmt.Sprintf("%d", b))
		}
		fmt.Fprintf(c.stdout, "%s %s\n", strings.Join(cols, " "), name)
	}

	var tl, tw, tb int
	err = c.each(args, func(arg string) error {
		data, err := in.readFile(c, arg)
		if err != nil {
			return err
		}
		l, w, b := bytes.Count(data, []byte("\n")), len(bytes.Fields(data)), len(data)
		tl, tw, tb = tl+l, tw+w, tb+b
		row(l, w, b, arg)
		return nil
	})
	if len(args) > 1 {
		row(tl, tw, tb, "total")
	}
	return err
}

func (in *Interpreter) grep(ctx context.Context, c *call) error {
	set := c.flagSet()
	ignoreCase := set.BoolP("ignore-case", "i", false, "")
	lineNumbers := set.BoolP("line-number", "n", false, "")
	recursive := set.BoolP("recursive", "r", false, "")
	invert := set.BoolP("invert-match", "v", false, "")
	count := set.BoolP("count", "c", false, "")
	filesOnly := set.BoolP("files-with-matches", "l", false, "")
	fixed := set.BoolP("fixed-strings", "F", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return usagef("usage: grep [-inrvclF] PATTERN FILE...")
	}
	pattern, targets := args[0], args[1:]
	if len(targets) == 0 {
		if !*recursive {
			return usagef("reading standard input is not supported; name a file")
		}
		targets = []string{"."}
	}
	if *fixed {
		pattern = regexp.QuoteMeta(pattern)
	}
	if *ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return usagef("invalid pattern: %v", err)
	}

	var files []string
	for _, arg := range targets {
		p, err := in.resolve(c.sess, arg)
		if err != nil {
			c.report(err)
			return exitStatus(ExitUsage)
		}
		if !in.fs.IsDir(p) {
			files = append(files, p)
			continue
		}
		if !*recursive {
			c.report(&fs.PathError{Op: "grep", Path: p, Err: vfs.ErrIsDir})
			continue
		}
		err = in.fs.Walk(p, func(wp string, info vfs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if info.IsDir() && info.Name() == ".git" {
				return fs.SkipDir
			}
			if !info.IsDir() {
				files = append(files, wp)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	label := func(p string) string { return displayPath(c.sess.Cwd, p) }
	multi := len(files) > 1 || *recursive
	matched := false
	for _, p := range files {
		data, err := in.fs.ReadFile(p)
		if err != nil {
			c.report(err)
			continue
		}
		n := 0
		for i, line := range splitLines(data) {
			if re.MatchString(line) == *invert {
				continue
			}
			n++
			matched = true
			if *count || *filesOnly {
				continue
			}
			prefix := ""
			if multi {
				prefix = label(p) + ":"
			}
			if *lineNumbers {
				prefix += fmt.Sprintf("%d:", i+1)
			}
			fmt.Fprintf(c.stdout, "%s%s\n", prefix, line)
		}
		switch {
		case *filesOnly && n > 0:
			fmt.Fprintln(c.stdout, label(p))
		case *count && multi:
			fmt.Fprintf(c.stdout, "%s:%d\n", label(p), n)
		case *count:
			fmt.Fprintf(c.stdout, "%d\n", n)
		}
	}
	if !matched {
		return exitStatus(1)
	}
	return nil
}

// displayPath shows p relative to cwd when it lies below it.
func displayPath(cwd, p string) string {
	if cwd != p && vfs.Within(cwd, p) {
		return vfs.Rel(cwd, p)
	}
	return p
}

func (in *Interpreter) find(ctx context.Context, c *call) error {
	// find's single-dash long options do not fit pflag.
	var (
		roots    []string
		namePat  string
		kind     string
		maxDepth = -1
	)
	args := c.args
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "-name", "-type", "-maxdepth":
			if i+1 >= len(args) {
				return usagef("missing argument to `%s'", a)
			}
			i++
			switch a {
			case "-name":
				if _, err := path.Match(args[i], ""); err != nil {
					return usagef("invalid -name pattern %q", args[i])
				}
				namePat = args[i]
			case "-type":
				if args[i] != "f" && args[i] != "d" {
					return usagef("unknown argument to -type: %s", args[i])
				}
				kind = args[i]
			case "-maxdepth":
				if _, err := fmt.Sscanf(args[i], "%d", &maxDepth); err != nil || maxDepth < 0 {
					return usagef("invalid -maxdepth %q", args[i])
				}
			}
		default:
			if strings.HasPrefix(a, "-") {
				return usagef("unknown predicate `%s'", a)
			}
			roots = append(roots, a)
		}
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}

	return c.each(roots, func(root string) error {
		start, err := in.resolve(c.sess, root)
		if err != nil {
			return err
		}
		if _, err := in.fs.Stat(start); err != nil {
			return err
		}
		return in.fs.Walk(start, func(p string, info vfs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			depth := 0
			if rel := vfs.Rel(start, p); rel != "." {
				depth = strings.Count(rel, "/") + 1
			}
			if maxDepth >= 0 && depth > maxDepth {
				if info.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if kind == "f" && info.IsDir() || kind == "d" && !info.IsDir() {
				return nil
			}
			if namePat != "" {
				if ok, _ := path.Match(namePat, vfs.Base(p)); !ok {
					return nil
				}
			}
			shown := root
			if rel := vfs.Rel(start, p); rel != "." {
				shown = strings.TrimSuffix(root, "/") + "/" + rel
			}
			fmt.Fprintln(c.stdout, shown)
			return nil
		})
	})
}

func (in *Interpreter) tree(c *call) error {
	set := c.flagSet()
	all := set.BoolP("all", "a", false, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return usagef("one directory at a time")
	}
	arg := "."
	if len(args) == 1 {
		arg = args[0]
	}
	root, err := in.resolve(c.sess, arg)
	if err != nil {
		return err
	}
	if !in.fs.IsDir(root) {
		if _, err := in.fs.Stat(root); err != nil {
			return err
		}
		return &fs.PathError{Op: "tree", Path: root, Err: vfs.ErrNotDir}
	}

	dirs, files := 0, 0
	var walk func(dir, indent string) error
	walk = func(dir, indent string) error {
		kids, err := in.fs.ReadDir(dir)
		if err != nil {
			return err
		}
		shown := kids[:0:0]
		for _, k := range kids {
			if *all || !strings.HasPrefix(k.Name(), ".") {
				shown = append(shown, k)
			}
		}
		for i, k := range shown {
			branch, next := "├── ", "│   "
			if i == len(shown)-1 {
				branch, next = "└── ", "    "
			}
			fmt.Fprintf(c.stdout, "%s%s%s\n", indent, branch, k.Name())
			if k.IsDir() {
				dirs++
				if err := walk(vfs.Join(dir, k.Name()), indent+next); err != nil {
					return err
				}
				continue
			}
			files++
		}
		return nil
	}
	fmt.Fprintln(c.stdout, arg)
	if err := walk(root, ""); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "\n%d %s, %d %s\n", dirs, plural(dirs, "directory", "directories"), files, plural(files, "file", "files"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// diff prints a unified diff of two files and exits 1 when they differ.
func (in *Interpreter) diff(c *call) error {
	set := c.flagSet()
	lines := set.IntP("unified", "U", 3, "")
	set.BoolP("unified-format", "u", true, "")
	args, err := c.parse(set)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return usagef("usage: diff [-u] [-U N] FILE1 FILE2")
	}
	a, err := in.readFile(c, args[0])
	if err != nil {
		return err
	}
	b, err := in.readFile(c, args[1])
	if err != nil {
		return err
	}
	if bytes.Equal(a, b) {
		return nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: args[0],
		ToFile:   args[1],
		Context:  *lines,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(c.stdout, text)
	return exitStatus(1)
}
