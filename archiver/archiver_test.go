package archiver

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/yeka/zip"

	. "github.com/smartystreets/goconvey/convey"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func writeEntry(a Archiver, name, content string) error {
	w, err := a.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return err
	}
	return w.Close()
}

func TestTarArchiver(t *testing.T) {
	Convey("A tar archiver", t, func() {
		out := &bufferCloser{}
		a := NewTarArchiver(out)

		Convey("should refuse a second open entry.", func() {
			w, err := a.Create("a.json")
			So(err, ShouldBeNil)
			_, err = a.Create("b.json")
			So(err, ShouldEqual, ErrWriterOpen)
			So(a.Close(), ShouldEqual, ErrWriterOpen)
			So(w.Close(), ShouldBeNil)
			So(a.Close(), ShouldBeNil)
		})

		Convey("should write entries with their parent directories", func() {
			So(writeEntry(a, "report/meta.json", "{}"), ShouldBeNil)
			So(writeEntry(a, "report/features.json", "[1]"), ShouldBeNil)
			So(a.Close(), ShouldBeNil)
			So(out.closed, ShouldBeTrue)

			rdr := tar.NewReader(bytes.NewReader(out.Bytes()))
			var names []string
			contents := make(map[string]string)
			for {
				hdr, err := rdr.Next()
				if err == io.EOF {
					break
				}
				So(err, ShouldBeNil)
				names = append(names, hdr.Name)
				if hdr.Typeflag == tar.TypeReg {
					b, err := io.ReadAll(rdr)
					So(err, ShouldBeNil)
					contents[hdr.Name] = string(b)
				}
			}

			Convey("in creation order.", func() {
				So(names, ShouldResemble, []string{"report/", "report/meta.json", "report/features.json"})
				So(contents["report/meta.json"], ShouldEqual, "{}")
				So(contents["report/features.json"], ShouldEqual, "[1]")
			})
		})
	})
}

func TestZipArchiver(t *testing.T) {
	Convey("A password protected zip archiver", t, func() {
		out := &bufferCloser{}
		a := NewZipArchiver(out, ZipOptions{Password: "infected"})

		So(writeEntry(a, "meta.json", `{"a":1}`), ShouldBeNil)
		So(a.Close(), ShouldBeNil)
		So(out.closed, ShouldBeTrue)

		rdr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
		So(err, ShouldBeNil)
		So(rdr.File, ShouldHaveLength, 1)

		f := rdr.File[0]
		Convey("should encrypt its entries", func() {
			So(f.Name, ShouldEqual, "meta.json")
			So(f.IsEncrypted(), ShouldBeTrue)

			Convey("readable with the password.", func() {
				f.SetPassword("infected")
				r, err := f.Open()
				So(err, ShouldBeNil)
				b, err := io.ReadAll(r)
				r.Close()
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"a":1}`)
			})
		})
	})

	Convey("A plain zip archiver", t, func() {
		out := &bufferCloser{}
		a := NewZipArchiver(out, ZipOptions{})

		So(writeEntry(a, "dir/strings.json", "[]"), ShouldBeNil)
		So(a.Close(), ShouldBeNil)

		rdr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
		So(err, ShouldBeNil)
		So(rdr.File, ShouldHaveLength, 1)

		Convey("should not encrypt.", func() {
			So(rdr.File[0].Name, ShouldEqual, "dir/strings.json")
			So(rdr.File[0].IsEncrypted(), ShouldBeFalse)
		})
	})
}
