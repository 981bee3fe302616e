//go:build linux || darwin || freebsd || netbsd || openbsd

package fileio

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int64) (*Content, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Content{
		Data: data,
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
