package output

import (
	"io"

	"github.com/fkie-cad/malw/pgp"

	"github.com/targodan/go-errors"
	"golang.org/x/crypto/openpgp"
)

type decoratedWriteCloser struct {
	writer    io.WriteCloser
	base      io.WriteCloser
	extension string
}

func (w *decoratedWriteCloser) Write(p []byte) (n int, err error) {
	return w.writer.Write(p)
}

// Close flushes the decorator before closing the underlying writer.
func (w *decoratedWriteCloser) Close() error {
	err := w.writer.Close()
	return errors.NewMultiError(err, w.base.Close())
}

// OutputDecorator wraps a writer, e.g. to compress or encrypt the data
// written to it.
type OutputDecorator interface {
	Decorate(out io.WriteCloser) (io.WriteCloser, error)
	// FileExtension is appended to the name of files written through the
	// decorator.
	FileExtension() string
}

type decorator struct {
	extension string
	wrap      func(io.Writer) (io.WriteCloser, error)
}

func (d *decorator) Decorate(out io.WriteCloser) (io.WriteCloser, error) {
	w, err := d.wrap(out)
	if err != nil {
		return nil, err
	}
	return &decoratedWriteCloser{
		writer:    w,
		base:      out,
		extension: d.extension,
	}, nil
}

func (d *decorator) FileExtension() string {
	return d.extension
}

// PGPEncryptionDecorator encrypts for the keys in ring.
func PGPEncryptionDecorator(ring openpgp.EntityList) OutputDecorator {
	return &decorator{
		extension: pgp.FileExtension,
		wrap: func(out io.Writer) (io.WriteCloser, error) {
			return pgp.NewEncryptor(ring, out)
		},
	}
}

// PGPSymmetricEncryptionDecorator encrypts with a password.
func PGPSymmetricEncryptionDecorator(password string) OutputDecorator {
	return &decorator{
		extension: pgp.FileExtension,
		wrap: func(out io.Writer) (io.WriteCloser, error) {
			return pgp.NewSymmetricEncryptor(password, out)
		},
	}
}

// ZSTDCompressionDecorator compresses with zstd.
func ZSTDCompressionDecorator() OutputDecorator {
	return &decorator{
		extension: ZSTDFileExtension,
		wrap: func(out io.Writer) (io.WriteCloser, error) {
			return NewZSTDCompressor(out)
		},
	}
}

// WriteCloserBuilder stacks decorators. The first appended decorator is the
// one closest to the final output, so data passes the decorators in reverse
// order of appending.
type WriteCloserBuilder struct {
	decorators []OutputDecorator
}

// NewWriteCloserBuilder creates a builder without decorators.
func NewWriteCloserBuilder() *WriteCloserBuilder {
	return &WriteCloserBuilder{}
}

// Append adds a decorator on top of the ones already added.
func (b *WriteCloserBuilder) Append(d OutputDecorator) *WriteCloserBuilder {
	b.decorators = append(b.decorators, d)
	return b
}

// SuggestedFileExtension is the concatenation of the decorator file
// extensions in the order they are applied to the data, e.g. ".zst.gpg".
func (b *WriteCloserBuilder) SuggestedFileExtension() string {
	ext := ""
	for i := len(b.decorators) - 1; i >= 0; i-- {
		ext += b.decorators[i].FileExtension()
	}
	return ext
}

// Build decorates out. Closing the returned writer closes out. If a
// decorator fails, out is closed and the error returned.
func (b *WriteCloserBuilder) Build(out io.WriteCloser) (io.WriteCloser, error) {
	var err error
	for _, d := range b.decorators {
		var decorated io.WriteCloser
		decorated, err = d.Decorate(out)
		if err != nil {
			return nil, errors.NewMultiError(errors.Newf("could not build output, reason: %w", err), out.Close())
		}
		out = decorated
	}
	return out, nil
}
