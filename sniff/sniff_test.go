package sniff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fkie-cad/malw/fileio"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/targodan/go-errors"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestBytes(t *testing.T) {
	Convey("Sniffing", t, func() {
		Convey("a PNG header should be recognized by its magic number.", func() {
			So(Bytes(pngHeader), ShouldEqual, "image/png")
		})
		Convey("plain text should fall back to content heuristics.", func() {
			So(Bytes([]byte("just some text\n")), ShouldStartWith, "text/plain")
		})
		Convey("no data should be labeled empty.", func() {
			So(Bytes(nil), ShouldEqual, Empty)
		})
		Convey("random binary data should get a generic label.", func() {
			label := Bytes([]byte{0x00, 0x01, 0x02, 0xfe, 0xff, 0x00, 0x13})
			So(strings.TrimSpace(label), ShouldNotBeEmpty)
		})
	})
}

func TestFile(t *testing.T) {
	Convey("Sniffing a file", t, func() {
		path := filepath.Join(t.TempDir(), "image")
		So(os.WriteFile(path, pngHeader, 0644), ShouldBeNil)

		label, err := File(path)

		Convey("should inspect its header.", func() {
			So(err, ShouldBeNil)
			So(label, ShouldEqual, "image/png")
		})
	})

	Convey("Sniffing a missing file", t, func() {
		_, err := File(filepath.Join(t.TempDir(), "missing"))

		Convey("should fail with an i/o failure.", func() {
			So(errors.Is(err, fileio.ErrIO), ShouldBeTrue)
		})
	})
}
