package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrPathExistsOverwrite is returned when a target exists and overwriting is not allowed
	ErrPathExistsOverwrite = errors.New("path already exists and overwriting is not allowed")

	// ErrPathTraversal is returned when an entry would be written outside the destination
	ErrPathTraversal = errors.New("extraction path escapes base directory")

	// ErrInvalidEntryName is returned for empty, absolute or otherwise unusable entry names
	ErrInvalidEntryName = errors.New("invalid archive entry name")

	errIsDirectory = errors.New("a directory is in the way")

	// ErrNoArchives is returned when Extract is called without any archive
	ErrNoArchives = errors.New("no archives to extract")
)

// PathError records the operation and path that failed during extraction.
type PathError struct {
	Path string
	Op   string
	Err  error
}

func (e *PathError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("path error %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func wrapPathTraversal(path string) error {
	return &PathError{Path: path, Op: "extract", Err: ErrPathTraversal}
}

func wrapInvalidEntry(name, reason string) error {
	return &PathError{Path: name, Op: "extract", Err: fmt.Errorf("%w: %s", ErrInvalidEntryName, reason)}
}

func wrapExists(path string) error {
	return &PathError{Path: path, Op: "extract", Err: ErrPathExistsOverwrite}
}

func wrapOp(op, path string, err error) error {
	return &PathError{Path: path, Op: op, Err: err}
}
