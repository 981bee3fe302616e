// Package sniff infers the content type of raw bytes.
package sniff

import (
	"io"
	"os"

	"github.com/fkie-cad/malw/fileio"

	"github.com/gabriel-vasile/mimetype"
	"github.com/h2non/filetype"
)

// HeaderSize is the number of leading bytes File inspects.
const HeaderSize = 8192

// Empty is the label for zero-length input.
const Empty = "empty"

// Bytes returns a label describing the content type of data. Magic number
// matching is tried first, content heuristics second.
func Bytes(data []byte) string {
	if len(data) == 0 {
		return Empty
	}
	if len(data) > HeaderSize {
		data = data[:HeaderSize]
	}

	kind, err := filetype.Match(data)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}

	return mimetype.Detect(data).String()
}

// File returns the content type label of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fileio.NewIOError("open", path, err)
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fileio.NewIOError("read", path, err)
	}
	return Bytes(header[:n]), nil
}
