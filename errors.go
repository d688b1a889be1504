package frameio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by plugins that do not implement an operation.
	ErrUnsupported = errors.New("operation not supported by plugin")

	// ErrUnsupportedFile is returned when no plugin claims a file.
	ErrUnsupportedFile = errors.New("no plugin supports the file")

	// ErrClosed is returned when using a reader or writer after Close.
	ErrClosed = errors.New("reader or writer is closed")
)

// Op is the operation a FileError refers to.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

func (op Op) participle() string {
	if op == OpWrite {
		return "written"
	}
	return string(op)
}

// FileError reports a file that could not be opened for reading or writing.
type FileError struct {
	Op   Op
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("the file '%s' cannot be %s", e.Path, e.Op.participle())
	}
	return fmt.Sprintf("the file '%s' cannot be %s: %v", e.Path, e.Op.participle(), e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
