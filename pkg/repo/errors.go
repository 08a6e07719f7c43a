package repo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrPathNotFound indicates that a path does not exist in a commit's
	// tree, or that an intermediate component is not a directory.
	ErrPathNotFound = errors.New("path not found")
)

// NotFoundError reports a missing repository, revision, branch or path.
type NotFoundError struct {
	Kind string // "repo", "commit", "branch", "path"
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is makes errors.Is(err, ErrNotFound) hold for every NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func notFound(kind, name string, err error) error {
	return &NotFoundError{Kind: kind, Name: name, Err: err}
}
