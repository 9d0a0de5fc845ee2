package vfs

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/odvcencio/sandgit/pkg/bytestore"
)

// Errors returned inside *fs.PathError values. They align with POSIX errno
// values so callers can use errors.Is against either form.
var (
	ErrNotFound         = fs.ErrNotExist
	ErrPermissionDenied = fs.ErrPermission
	ErrExists           = fs.ErrExist
	ErrIsDir            = syscall.EISDIR
	ErrNotDir           = syscall.ENOTDIR
	ErrNotEmpty         = syscall.ENOTEMPTY
	ErrCASMismatch      = bytestore.ErrMismatch
	ErrInvalid          = errors.New("invalid argument")
)

func pathErr(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}
