package release

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteMutation wraps every rejected remote write, from the draft to
	// the version-file commit. Nothing is rolled back.
	ErrRemoteMutation       = errors.New("remote mutation failed")
	ErrVersionNotFound      = errors.New("version declaration not found in version file")
	ErrAmbiguousVersionFile = errors.New("version declaration appears more than once in version file")
	ErrLocalSourceLive      = errors.New("local artifacts may only be used for a dry run")
	ErrAlreadyReleased      = errors.New("release is already published")
	ErrJournalMismatch      = errors.New("journaled release does not match GitHub")
)

// MutationError identifies the remote operation that failed.
type MutationError struct {
	Op     string // create, delete, upload, publish, bump
	Target string // tag, asset name or file path
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrRemoteMutation, e.Op, e.Target, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func (e *MutationError) Is(target error) bool {
	return target == ErrRemoteMutation
}
