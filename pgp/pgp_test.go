package pgp

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fkie-cad/malw/fileio"

	"github.com/targodan/go-errors"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	. "github.com/smartystreets/goconvey/convey"
)

func encrypt(w io.WriteCloser, err error, out *bytes.Buffer, data string) {
	So(err, ShouldBeNil)
	_, err = w.Write([]byte(data))
	So(err, ShouldBeNil)
	So(w.Close(), ShouldBeNil)
	So(out.Len(), ShouldBeGreaterThan, 0)
	So(bytes.Contains(out.Bytes(), []byte(data)), ShouldBeFalse)
}

func TestSymmetric(t *testing.T) {
	Convey("Symmetrically encrypted data", t, func() {
		out := &bytes.Buffer{}
		w, err := NewSymmetricEncryptor("secret", out)
		encrypt(w, err, out, "report contents")

		Convey("should decrypt with the right password.", func() {
			r, err := NewSymmetricDecryptor("secret", bytes.NewReader(out.Bytes()))
			So(err, ShouldBeNil)
			b, err := io.ReadAll(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "report contents")
		})

		Convey("should not decrypt with a wrong password.", func() {
			_, err := NewSymmetricDecryptor("wrong", bytes.NewReader(out.Bytes()))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAsymmetric(t *testing.T) {
	Convey("Data encrypted for a key", t, func() {
		entity, err := openpgp.NewEntity("malw", "test", "malw@example.com", nil)
		So(err, ShouldBeNil)
		ring := openpgp.EntityList{entity}

		out := &bytes.Buffer{}
		w, err := NewEncryptor(ring, out)
		encrypt(w, err, out, "feature data")

		Convey("should decrypt with the private key.", func() {
			r, err := NewDecryptor(ring, "", bytes.NewReader(out.Bytes()))
			So(err, ShouldBeNil)
			b, err := io.ReadAll(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "feature data")
		})

		Convey("should not decrypt symmetrically.", func() {
			_, err := NewSymmetricDecryptor("secret", bytes.NewReader(out.Bytes()))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReadKeyRing(t *testing.T) {
	Convey("Reading a key ring", t, func() {
		dir := t.TempDir()

		Convey("from an armored public key should yield the entity.", func() {
			entity, err := openpgp.NewEntity("malw", "", "malw@example.com", nil)
			So(err, ShouldBeNil)

			buf := &bytes.Buffer{}
			aw, err := armor.Encode(buf, openpgp.PublicKeyType, nil)
			So(err, ShouldBeNil)
			So(entity.Serialize(aw), ShouldBeNil)
			So(aw.Close(), ShouldBeNil)

			path := filepath.Join(dir, "key.asc")
			So(os.WriteFile(path, buf.Bytes(), 0600), ShouldBeNil)

			ring, err := ReadKeyRing(path)
			So(err, ShouldBeNil)
			So(ring, ShouldHaveLength, 1)
			So(ring[0].PrimaryKey.KeyId, ShouldEqual, entity.PrimaryKey.KeyId)
		})

		Convey("from a missing file should be an IO error.", func() {
			_, err := ReadKeyRing(filepath.Join(dir, "missing.asc"))
			So(errors.Is(err, fileio.ErrIO), ShouldBeTrue)
		})

		Convey("from garbage should fail.", func() {
			path := filepath.Join(dir, "garbage")
			So(os.WriteFile(path, []byte("not a key"), 0600), ShouldBeNil)
			_, err := ReadKeyRing(path)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, fileio.ErrIO), ShouldBeFalse)
		})
	})
}
