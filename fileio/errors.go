package fileio

import (
	"fmt"

	"github.com/targodan/go-errors"
)

// ErrIO is matched by every *IOError via errors.Is.
var ErrIO = errors.New("i/o failure")

// IOError signals that a file could not be opened or read.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// NewIOError wraps err as an IOError for the given operation and path.
// A nil err yields nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("could not %s \"%s\", reason: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
