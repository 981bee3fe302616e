package report

import (
	"archive/tar"
	"bufio"
	"bytes"
	"io"
	"os"
	"path"

	"github.com/fkie-cad/malw/fileio"
	"github.com/fkie-cad/malw/pgp"

	"github.com/klauspost/compress/zstd"
	"github.com/targodan/go-errors"
	"github.com/yeka/zip"
	"golang.org/x/crypto/openpgp"
)

// ErrPartMissing is returned when a bundle lacks one of its parts.
var ErrPartMissing = errors.New("report part is missing")

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic  = []byte("PK\x03\x04")
)

// Reader gives access to the parts of a bundle.
type Reader interface {
	OpenMeta() (io.ReadCloser, error)
	OpenFeatures() (io.ReadCloser, error)
	OpenStrings() (io.ReadCloser, error)
	OpenCorrelation() (io.ReadCloser, error)
	io.Closer
}

// FileReader reads a bundle file. Tar bundles may be zstd compressed and
// PGP encrypted; zip bundles may be AES encrypted with the password.
type FileReader struct {
	path     string
	password string
	keyring  openpgp.EntityList

	hasRead   bool
	lastError error
	parts     map[string][]byte
}

// NewFileReader creates a reader for the bundle at path. Nothing is read
// before the first part is opened.
func NewFileReader(path string) *FileReader {
	return &FileReader{
		path: path,
	}
}

// SetPassword sets the password for PGP symmetric decryption of tar
// bundles, the password of an encrypted private key or the zip password.
func (rdr *FileReader) SetPassword(password string) {
	rdr.password = password
}

// SetKeyring enables PGP decryption with the private keys in keyring.
func (rdr *FileReader) SetKeyring(keyring openpgp.EntityList) {
	rdr.keyring = keyring
}

func (rdr *FileReader) decrypt(in io.Reader) (io.Reader, error) {
	if rdr.keyring != nil {
		return pgp.NewDecryptor(rdr.keyring, rdr.password, in)
	}
	if rdr.password != "" {
		return pgp.NewSymmetricDecryptor(rdr.password, in)
	}
	return in, nil
}

func (rdr *FileReader) readAll() {
	if rdr.hasRead {
		return
	}
	rdr.hasRead = true
	rdr.parts = make(map[string][]byte)

	file, err := os.Open(rdr.path)
	if err != nil {
		rdr.lastError = fileio.NewIOError("open", rdr.path, err)
		return
	}
	defer file.Close()

	in := bufio.NewReader(file)
	magic, _ := in.Peek(len(zipMagic))
	if bytes.Equal(magic, zipMagic) {
		rdr.lastError = rdr.readZip(file)
		return
	}

	decrypted, err := rdr.decrypt(in)
	if err != nil {
		rdr.lastError = err
		return
	}
	rdr.lastError = rdr.readTar(decrypted)
}

func (rdr *FileReader) readZip(file *os.File) error {
	stat, err := file.Stat()
	if err != nil {
		return fileio.NewIOError("stat", rdr.path, err)
	}
	z, err := zip.NewReader(file, stat.Size())
	if err != nil {
		return errors.Newf("could not open zip bundle, reason: %w", err)
	}
	for _, f := range z.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.IsEncrypted() {
			f.SetPassword(rdr.password)
		}
		data, err := readZipEntry(f)
		if err != nil {
			return errors.Newf("could not read \"%s\" from zip bundle, reason: %w", f.Name, err)
		}
		rdr.parts[path.Base(f.Name)] = data
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (rdr *FileReader) readTar(in io.Reader) error {
	buffered := bufio.NewReader(in)
	magic, _ := buffered.Peek(len(zstdMagic))
	var tarIn io.Reader = buffered
	if bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(buffered)
		if err != nil {
			return err
		}
		defer dec.Close()
		tarIn = dec
	}

	tarRdr := tar.NewReader(tarIn)
	for {
		hdr, err := tarRdr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Newf("could not read tar bundle, reason: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		buf := &bytes.Buffer{}
		if _, err = io.Copy(buf, tarRdr); err != nil {
			return errors.Newf("could not read \"%s\" from tar bundle, reason: %w", hdr.Name, err)
		}
		rdr.parts[path.Base(hdr.Name)] = buf.Bytes()
	}
}

func (rdr *FileReader) open(name string) (io.ReadCloser, error) {
	rdr.readAll()
	if rdr.lastError != nil {
		return nil, rdr.lastError
	}
	data, ok := rdr.parts[name]
	if !ok {
		return nil, errors.Newf("%w: %s", ErrPartMissing, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (rdr *FileReader) OpenMeta() (io.ReadCloser, error) {
	return rdr.open(MetaFileName)
}

func (rdr *FileReader) OpenFeatures() (io.ReadCloser, error) {
	return rdr.open(FeaturesFileName)
}

func (rdr *FileReader) OpenStrings() (io.ReadCloser, error) {
	return rdr.open(StringsFileName)
}

func (rdr *FileReader) OpenCorrelation() (io.ReadCloser, error) {
	return rdr.open(CorrelationFileName)
}

func (rdr *FileReader) Close() error {
	rdr.parts = nil
	return nil
}

// ReaderFactory opens bundles with common decryption settings.
type ReaderFactory struct {
	keyring  openpgp.EntityList
	password string
}

func NewReaderFactory() *ReaderFactory {
	return &ReaderFactory{}
}

func (f *ReaderFactory) SetPassword(password string) {
	f.password = password
}

func (f *ReaderFactory) SetKeyring(keyring openpgp.EntityList) {
	f.keyring = keyring
}

func (f *ReaderFactory) OpenFile(path string) Reader {
	rdr := NewFileReader(path)
	rdr.SetPassword(f.password)
	rdr.SetKeyring(f.keyring)
	return rdr
}
