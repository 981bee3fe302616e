//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package fileio

import (
	"io"
	"os"
)

func mapFile(f *os.File, size int64) (*Content, error) {
	data := make([]byte, size)
	_, err := io.ReadFull(f, data)
	if err != nil {
		return nil, err
	}
	return &Content{Data: data}, nil
}
