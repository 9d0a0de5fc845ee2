package repo

import (
	"path"
	"regexp"
	"strings"
)

// IgnoreChecker determines whether a worktree path is ignored. .git is
// always ignored; other patterns come from the root .gitignore.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // contains a slash, so it matches the full path
	regex    *regexp.Regexp
}

func (r *Repo) ignoreChecker() *IgnoreChecker {
	data, _ := r.FS.ReadFile(r.workPath(".gitignore"))
	return NewIgnoreChecker(string(data))
}

// NewIgnoreChecker parses .gitignore content.
func NewIgnoreChecker(content string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	for _, line := range strings.Split(content, "\n") {
		if p, ok := parseIgnoreLine(line); ok {
			ic.patterns = append(ic.patterns, p)
		}
	}
	return ic
}

func parseIgnoreLine(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}
	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		line = strings.TrimPrefix(line, "/")
		p.anchored = true
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	if line == "" {
		return ignorePattern{}, false
	}
	p.pattern = line
	if strings.Contains(line, "**") {
		re, err := regexp.Compile(globToRegex(line))
		if err != nil {
			return ignorePattern{}, false
		}
		p.regex = re
	}
	return p, true
}

// IsIgnored reports whether rel (repo-relative, forward slashes) is
// ignored. A path below an ignored directory is ignored too. The last
// matching pattern wins, so "!" patterns can re-include.
func (ic *IgnoreChecker) IsIgnored(rel string, isDir bool) bool {
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	// Check each ancestor directory, then the path itself.
	segments := strings.Split(rel, "/")
	for i := 1; i < len(segments); i++ {
		if ic.match(strings.Join(segments[:i], "/"), true) {
			return true
		}
	}
	return ic.match(rel, isDir)
}

func (ic *IgnoreChecker) match(rel string, isDir bool) bool {
	ignored := false
	base := path.Base(rel)
	for _, p := range ic.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := base
		if p.anchored {
			target = rel
		}
		if p.matches(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p ignorePattern) matches(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	ok, _ := path.Match(p.pattern, target)
	return ok
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				// "**/" matches zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
