package bytescan

import (
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/fkie-cad/malw/fileio"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/targodan/go-errors"
)

func wide(s string) []byte {
	b := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); i++ {
		b = append(b, s[i], 0)
	}
	return b
}

func concat(parts ...[]byte) []byte {
	b := make([]byte, 0)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func TestScanASCII(t *testing.T) {
	Convey("Scanning a buffer with an email followed by a NUL byte", t, func() {
		buf := concat([]byte("test@test.com\x00"), []byte{0x01, 0x02, 0xff, 0x90})
		strs := Scan(buf, Options{MinChars: 4}).All()

		Convey("should yield exactly one ascii string.", func() {
			So(len(strs), ShouldEqual, 1)
			So(strs[0].Value, ShouldEqual, "test@test.com")
			So(strs[0].Offset, ShouldEqual, 0)
			So(strs[0].Encoding, ShouldEqual, ASCII)
		})
	})

	Convey("Scanning runs of different lengths", t, func() {
		buf := []byte("abc\x00abcd\x01\x02  padded\t\x03")
		strs := Scan(buf, Options{MinChars: 4}).All()

		Convey("should drop short runs and trim whitespace.", func() {
			So(len(strs), ShouldEqual, 2)
			So(strs[0].Value, ShouldEqual, "abcd")
			So(strs[0].Offset, ShouldEqual, 4)
			So(strs[1].Value, ShouldEqual, "padded")
			So(strs[1].Offset, ShouldEqual, 10)
		})
	})

	Convey("A run consisting only of whitespace", t, func() {
		strs := Scan([]byte("\x00      \x00"), Options{MinChars: 4}).All()

		Convey("should not be yielded.", func() {
			So(strs, ShouldBeEmpty)
		})
	})

	Convey("Line breaks", t, func() {
		strs := Scan([]byte("first\nsecond"), Options{MinChars: 4}).All()

		Convey("should split runs.", func() {
			So(len(strs), ShouldEqual, 2)
			So(strs[0].Value, ShouldEqual, "first")
			So(strs[1].Value, ShouldEqual, "second")
			So(strs[1].Offset, ShouldEqual, 6)
		})
	})
}

func TestScanWide(t *testing.T) {
	Convey("Scanning a buffer with a wide string", t, func() {
		buf := concat([]byte{0xff, 0xfe}, wide("kernel32.dll"), []byte{0, 0, 0x90})
		strs := Scan(buf, Options{MinChars: 4, Encodings: Wide}).All()

		Convey("should decode it.", func() {
			So(len(strs), ShouldEqual, 1)
			So(strs[0].Value, ShouldEqual, "kernel32.dll")
			So(strs[0].Offset, ShouldEqual, 2)
			So(strs[0].Encoding, ShouldEqual, Wide)
		})
	})

	Convey("Scanning with both encodings", t, func() {
		buf := concat([]byte("plain text\x00\x00"), wide("wide text"))
		strs := Scan(buf, Options{MinChars: 4}).All()

		Convey("should yield the ascii strings first, then the wide ones.", func() {
			So(len(strs), ShouldEqual, 2)
			So(strs[0].Encoding, ShouldEqual, ASCII)
			So(strs[0].Value, ShouldEqual, "plain text")
			So(strs[1].Encoding, ShouldEqual, Wide)
			So(strs[1].Value, ShouldEqual, "wide text")
			So(strs[1].Offset, ShouldEqual, 12)
		})
	})

	Convey("A short wide run", t, func() {
		strs := Scan(wide("abc"), Options{MinChars: 4, Encodings: Wide}).All()

		Convey("should be ignored.", func() {
			So(strs, ShouldBeEmpty)
		})
	})

	Convey("A wide run that fails to decode", t, func() {
		it := Scan(wide("abcdef"), Options{MinChars: 4, Encodings: Wide})
		it.decoder = func([]byte) (string, bool) { return "", false }

		Convey("should be dropped silently.", func() {
			s, err := it.Next()
			So(s, ShouldBeNil)
			So(err, ShouldEqual, io.EOF)
		})
	})
}

func TestScanRegion(t *testing.T) {
	Convey("Scanning with an offset and a byte limit", t, func() {
		buf := []byte("skipped\x00inside-region\x00outside")
		strs := Scan(buf, Options{MinChars: 4, Offset: 8, MaxBytes: 14}).All()

		Convey("should only scan the region and report absolute offsets.", func() {
			So(len(strs), ShouldEqual, 1)
			So(strs[0].Value, ShouldEqual, "inside-region")
			So(strs[0].Offset, ShouldEqual, 8)
		})
	})

	Convey("Scanning with an offset beyond the buffer", t, func() {
		strs := Scan([]byte("some text"), Options{Offset: 100}).All()

		Convey("should yield nothing.", func() {
			So(strs, ShouldBeEmpty)
		})
	})

	Convey("Scanning with the largest possible byte limit", t, func() {
		strs := Scan([]byte("xxhello world"), Options{Offset: 2, MaxBytes: math.MaxInt64}).All()

		Convey("should scan up to the end of the buffer.", func() {
			So(strs, ShouldHaveLength, 1)
			So(strs[0].Value, ShouldEqual, "hello world")
			So(strs[0].Offset, ShouldEqual, 2)
		})
	})

	Convey("For random buffers", t, func() {
		rnd := rand.New(rand.NewSource(3))
		for round := 0; round < 20; round++ {
			buf := make([]byte, 4096)
			rnd.Read(buf)
			for i := range buf {
				// bias towards printable bytes
				if buf[i]&0x80 != 0 {
					buf[i] = 'a' + buf[i]%26
				}
			}
			offset := int64(rnd.Intn(1024))
			maxBytes := int64(rnd.Intn(2048) + 1)

			for _, s := range Scan(buf, Options{MinChars: 3, Offset: offset, MaxBytes: maxBytes}).All() {
				So(s.Offset, ShouldBeGreaterThanOrEqualTo, offset)
				So(s.Offset, ShouldBeLessThan, offset+maxBytes)
				if s.Encoding == ASCII {
					for i := 0; i < len(s.Value); i++ {
						So(IsPrintable(s.Value[i]), ShouldBeTrue)
					}
				}
			}
		}
	})
}

func TestScanFile(t *testing.T) {
	Convey("Scanning a file region", t, func() {
		path := filepath.Join(t.TempDir(), "sample.bin")
		So(os.WriteFile(path, []byte("\x00\x00first\x00\x00second\x00"), 0644), ShouldBeNil)

		it, err := ScanFile(path, Options{Offset: 10})
		So(err, ShouldBeNil)
		strs := it.All()

		Convey("should report file offsets.", func() {
			So(len(strs), ShouldEqual, 1)
			So(strs[0].Value, ShouldEqual, "econd")
			So(strs[0].Offset, ShouldEqual, 10)
		})
	})

	Convey("Scanning a missing file", t, func() {
		_, err := ScanFile(filepath.Join(t.TempDir(), "missing"), Options{})

		Convey("should fail with an i/o failure.", func() {
			So(errors.Is(err, fileio.ErrIO), ShouldBeTrue)
		})
	})
}

func TestParseEncoding(t *testing.T) {
	Convey("Parsing encodings", t, func() {
		enc, err := ParseEncoding("wide")
		So(err, ShouldBeNil)
		So(enc, ShouldEqual, Wide)
		enc, err = ParseEncoding("ALL")
		So(err, ShouldBeNil)
		So(enc, ShouldEqual, AllEncodings)
		_, err = ParseEncoding("ebcdic")
		So(err, ShouldNotBeNil)
	})
}
