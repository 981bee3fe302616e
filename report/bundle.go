package report

import (
	"os"

	"github.com/fkie-cad/malw/archiver"
	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/output"

	"github.com/targodan/go-errors"
	"golang.org/x/crypto/openpgp"
)

// BundleOptions selects the container of a bundle. Without ZIPPassword the
// bundle is a zstd compressed tar, optionally PGP encrypted with either
// Password or Keyring.
type BundleOptions struct {
	Password    string
	Keyring     openpgp.EntityList
	ZIPPassword string
}

// Validate reports conflicting options.
func (o BundleOptions) Validate() error {
	if o.Password != "" && o.Keyring != nil {
		return errors.New("cannot encrypt with both a pgp key and a password")
	}
	if o.ZIPPassword != "" && (o.Password != "" || o.Keyring != nil) {
		return errors.New("zip bundles cannot be pgp encrypted")
	}
	return nil
}

// SuggestedFileExtension is the file extension matching the options, e.g.
// ".tar.zst.gpg".
func (o BundleOptions) SuggestedFileExtension() string {
	if o.ZIPPassword != "" {
		return ".zip"
	}
	return ".tar" + o.builder().SuggestedFileExtension()
}

func (o BundleOptions) builder() *output.WriteCloserBuilder {
	b := output.NewWriteCloserBuilder()
	if o.Password != "" {
		b.Append(output.PGPSymmetricEncryptionDecorator(o.Password))
	}
	if o.Keyring != nil {
		b.Append(output.PGPEncryptionDecorator(o.Keyring))
	}
	return b.Append(output.ZSTDCompressionDecorator())
}

// WriteFile writes rprt as a bundle to path.
func WriteFile(path string, rprt *Report, opts BundleOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fileio.NewIOError("create", path, err)
	}

	var arch archiver.Archiver
	if opts.ZIPPassword != "" {
		arch = archiver.NewZipArchiver(f, archiver.ZipOptions{Password: opts.ZIPPassword})
	} else {
		out, err := opts.builder().Build(f)
		if err != nil {
			return err
		}
		arch = archiver.NewTarArchiver(out)
	}

	err = NewWriter(arch).WriteReport(rprt)
	return errors.NewMultiError(err, arch.Close())
}
