package vfs

import (
	"io/fs"
	"time"
)

// FileInfo describes a node. It implements fs.FileInfo.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func newFileInfo(p string, n *node) FileInfo {
	fi := FileInfo{path: p, name: Base(p), modTime: n.modTime}
	switch n.kind {
	case kindDir:
		fi.mode = fs.ModeDir | 0o755
	case kindExec:
		fi.mode = 0o755
		fi.size = int64(len(n.data))
	default:
		fi.mode = 0o644
		fi.size = int64(len(n.data))
	}
	return fi
}

// Path returns the full sandbox path.
func (fi FileInfo) Path() string { return fi.path }

func (fi FileInfo) Name() string       { return fi.name }
func (fi FileInfo) Size() int64        { return fi.size }
func (fi FileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi FileInfo) ModTime() time.Time { return fi.modTime }
func (fi FileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi FileInfo) Sys() any           { return nil }

// IsExecutable reports whether any execute bit is set on a file.
func (fi FileInfo) IsExecutable() bool { return !fi.IsDir() && fi.mode&0o111 != 0 }

var _ fs.FileInfo = FileInfo{}
