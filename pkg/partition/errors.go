package partition

import (
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
)

var (
	// ErrInvalidConfiguration is matched by every *ConfigError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOversizedFile is matched by every *OversizedFileError.
	ErrOversizedFile = errors.New("file exceeds the archive size limit")

	// ErrFileAccess is matched by every *FileAccessError.
	ErrFileAccess = errors.New("file access failed")

	// ErrReservedName is wrapped by the *FileAccessError returned when a
	// verbatim copy would land on a name the job writes archives or its lock to.
	ErrReservedName = errors.New("name is reserved for job output")
)

// ConfigError reports a configuration value rejected before any I/O happens.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%v: %s (value: %v): %s", ErrInvalidConfiguration, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OversizedFileError is returned under PolicyFail for the first file whose size
// exceeds the effective threshold. Archives completed before it stay on disk.
type OversizedFileError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *OversizedFileError) Error() string {
	return fmt.Sprintf("file %q is %s (%d bytes), which exceeds the archive size limit of %s (%d bytes)",
		e.Path, datasize.ByteSize(e.Size).HR(), e.Size, datasize.ByteSize(e.Limit).HR(), e.Limit)
}

func (e *OversizedFileError) Is(target error) bool {
	return target == ErrOversizedFile
}

// FileAccessError wraps an I/O failure on a source file, an archive or a copy target.
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%v: %s %q: %v", ErrFileAccess, e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

func (e *FileAccessError) Is(target error) bool {
	return target == ErrFileAccess
}

func wrapAccess(op, path string, err error) error {
	return &FileAccessError{Path: path, Op: op, Err: err}
}
