package fileio

import "os"

// File is a small abstraction layer for a file.
type File interface {
	Path() string
	Stat() (os.FileInfo, error)
}

type file struct {
	path string
}

// NewFile creates a new File for the given path.
func NewFile(path string) File {
	return &file{path: path}
}

// Path returns the path of the file.
func (f *file) Path() string {
	return f.path
}

// Stat returns the os.FileInfo associated with the file.
func (f *file) Stat() (os.FileInfo, error) {
	return os.Stat(f.path)
}
