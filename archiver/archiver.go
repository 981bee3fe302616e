// Package archiver writes named entries into tar or zip containers.
package archiver

import (
	"archive/tar"
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeka/zip"

	"github.com/targodan/go-errors"
)

const (
	tarDirMode  = 0755
	tarFileMode = 0644
)

// ErrWriterOpen is returned if an entry is created or the archive is closed
// while the writer of a previous entry is still open.
var ErrWriterOpen = errors.New("the writer of the previous entry has not been closed")

// Archiver creates entries one after another. Only one entry writer may be
// open at a time.
type Archiver interface {
	Create(name string) (io.WriteCloser, error)
	io.Closer
}

// ZipOptions configures a zip Archiver.
type ZipOptions struct {
	// Method is the zip compression method, zip.Deflate if zero.
	Method uint16
	// Password enables AES-256 encryption of every entry if not empty.
	Password string
}

type zipArchiver struct {
	out     io.Closer
	writer  *zip.Writer
	opts    ZipOptions
	pending bool
	now     func() time.Time
}

// NewZipArchiver creates a zip Archiver writing to out. Closing the Archiver
// closes out.
func NewZipArchiver(out io.WriteCloser, opts ZipOptions) Archiver {
	if opts.Method == 0 {
		opts.Method = zip.Deflate
	}
	return &zipArchiver{
		out:    out,
		writer: zip.NewWriter(out),
		opts:   opts,
		now:    time.Now,
	}
}

func (z *zipArchiver) Create(name string) (io.WriteCloser, error) {
	if z.pending {
		return nil, ErrWriterOpen
	}
	name = filepath.ToSlash(name)

	var w io.Writer
	var err error
	if z.opts.Password != "" {
		w, err = z.writer.Encrypt(name, z.opts.Password, zip.AES256Encryption)
	} else {
		hdr := &zip.FileHeader{
			Name:   name,
			Method: z.opts.Method,
		}
		hdr.SetModTime(z.now())
		w, err = z.writer.CreateHeader(hdr)
	}
	if err != nil {
		return nil, errors.Newf("could not create zip entry \"%s\", reason: %w", name, err)
	}

	z.pending = true
	return &callbackWriteCloser{
		writer: w,
		close: func() error {
			z.pending = false
			return nil
		},
	}, nil
}

func (z *zipArchiver) Close() error {
	if z.pending {
		return ErrWriterOpen
	}
	return errors.NewMultiError(z.writer.Close(), z.out.Close())
}

type tarArchiver struct {
	writer  *tar.Writer
	out     io.Closer
	pending *bytes.Buffer
	now     func() time.Time

	dirs map[string]bool
}

// NewTarArchiver creates a tar Archiver writing to out. Parent directories
// of entries are added automatically. Closing the Archiver closes out.
func NewTarArchiver(out io.WriteCloser) Archiver {
	return &tarArchiver{
		writer: tar.NewWriter(out),
		out:    out,
		now:    time.Now,
		dirs:   make(map[string]bool),
	}
}

func (t *tarArchiver) mkdirAll(name string) error {
	parts := strings.Split(name, "/")
	if len(parts) < 2 {
		return nil
	}
	dir := ""
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			continue
		}
		dir += part + "/"
		if t.dirs[dir] {
			continue
		}
		err := t.writer.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     dir,
			Mode:     tarDirMode,
			ModTime:  t.now(),
		})
		if err != nil {
			return errors.Newf("could not create tar directory \"%s\", reason: %w", dir, err)
		}
		t.dirs[dir] = true
	}
	return nil
}

func (t *tarArchiver) Create(name string) (io.WriteCloser, error) {
	if t.pending != nil {
		return nil, ErrWriterOpen
	}
	name = filepath.ToSlash(name)

	if err := t.mkdirAll(name); err != nil {
		return nil, err
	}

	// tar needs the size up front, so the entry is buffered until Close.
	t.pending = &bytes.Buffer{}
	return &callbackWriteCloser{
		writer: t.pending,
		close: func() error {
			buf := t.pending
			t.pending = nil
			err := t.writer.WriteHeader(&tar.Header{
				Typeflag: tar.TypeReg,
				Name:     name,
				Size:     int64(buf.Len()),
				Mode:     tarFileMode,
				ModTime:  t.now(),
			})
			if err != nil {
				return errors.Newf("could not write tar header for \"%s\", reason: %w", name, err)
			}
			_, err = io.Copy(t.writer, buf)
			return err
		},
	}, nil
}

func (t *tarArchiver) Close() error {
	if t.pending != nil {
		return ErrWriterOpen
	}
	return errors.NewMultiError(t.writer.Close(), t.out.Close())
}
