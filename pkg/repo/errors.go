package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/sandgit/pkg/object"
)

var (
	ErrRefConflict        = errors.New("ref changed concurrently")
	ErrRefExists          = errors.New("ref already exists")
	ErrRefNotFound        = errors.New("ref not found")
	ErrUnborn             = errors.New("ref has no commits yet")
	ErrAmbiguousRef       = errors.New("ambiguous ref")
	ErrInvalidRefName     = errors.New("invalid ref name")
	ErrNothingToCommit    = errors.New("nothing to commit")
	ErrUncommittedChanges = errors.New("uncommitted changes would be overwritten")
	ErrNonFastForward     = errors.New("non-fast-forward update rejected")
	ErrMergeInProgress    = errors.New("merge in progress")
	ErrNoMergeInProgress  = errors.New("no merge in progress")
	ErrRemoteNotFound     = errors.New("remote not found")
	ErrRemoteExists       = errors.New("remote already exists")
	ErrIterExhausted      = errors.New("log iterator already exhausted")
	ErrPathspec           = errors.New("pathspec did not match any files")
	ErrIdentityUnknown    = errors.New("author identity unknown")
	ErrOutsideRepository  = errors.New("path is outside repository")

	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// MergeConflictError reports the paths a merge left conflicted. The merge
// itself completed: the worktree carries conflict markers and the
// repository is in the merging state.
type MergeConflictError struct {
	Paths []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s", strings.Join(e.Paths, ", "))
}

// RefUpdateReflogError indicates the ref update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}
