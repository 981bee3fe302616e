package fileio

import (
	"io"
	"os"
)

// Content holds the bytes of a loaded file. Close must be called once the
// data is no longer used; Data must not be accessed afterwards.
type Content struct {
	Data    []byte
	release func() error
}

// Close releases the resources backing Data.
func (c *Content) Close() error {
	if c.release == nil {
		return nil
	}
	release := c.release
	c.release = nil
	c.Data = nil
	return release()
}

// Load makes the full contents of the file at path available. On platforms
// that support it the file is memory mapped.
func Load(path string) (*Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewIOError("open", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, NewIOError("stat", path, err)
	}
	if stat.Size() == 0 {
		return &Content{Data: []byte{}}, nil
	}

	content, err := mapFile(f, stat.Size())
	if err != nil {
		return nil, NewIOError("read", path, err)
	}
	return content, nil
}

// ReadFile reads the whole file at path into memory.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewIOError("read", path, err)
	}
	return data, nil
}

// ReadRegion reads the bytes of the file at path starting at offset. If
// maxBytes is greater than zero, at most maxBytes are read. An offset beyond
// the end of the file yields an empty slice.
func ReadRegion(path string, offset, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewIOError("open", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, NewIOError("stat", path, err)
	}

	size := stat.Size()
	if offset < 0 {
		offset = 0
	}
	if offset >= size {
		return []byte{}, nil
	}
	n := size - offset
	if maxBytes > 0 && maxBytes < n {
		n = maxBytes
	}

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, NewIOError("read", path, err)
	}
	return buf[:read], nil
}
