package vfs

import (
	"io/fs"
	"strings"
)

// Clean normalizes p into a sandbox-absolute, forward-slash path. Relative
// paths are taken relative to "/". A ".." that would climb above "/" fails
// with ErrPermissionDenied instead of being silently clamped.
func Clean(p string) (string, error) {
	return Resolve("/", p)
}

// Resolve joins p onto cwd (or onto "/" when p is absolute) and normalizes
// the result. cwd must already be sandbox-absolute.
func Resolve(cwd, p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	var stack []string
	if !strings.HasPrefix(p, "/") {
		stack = splitSegments(cwd)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", &fs.PathError{Op: "resolve", Path: p, Err: ErrPermissionDenied}
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	return "/" + strings.Join(stack, "/"), nil
}

// Within reports whether p equals root or lies below it. Both must be clean.
func Within(root, p string) bool {
	if root == "/" || root == p {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// Rel returns p relative to root, or "." when they are equal.
func Rel(root, p string) string {
	if root == p {
		return "."
	}
	if root == "/" {
		return strings.TrimPrefix(p, "/")
	}
	return strings.TrimPrefix(p, root+"/")
}

// Join concatenates clean path elements with "/".
func Join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// Dir returns the parent of a clean absolute path.
func Dir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// Base returns the last element of a clean absolute path.
func Base(p string) string {
	if p == "/" {
		return "/"
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}

func splitSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}
