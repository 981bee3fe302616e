package fileio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/targodan/go-errors"
)

func testDataDir(path ...string) string {
	path = append([]string{"..", "testdata", "fileio"}, path...)
	return filepath.Join(path...)
}

func TestIterateFail(t *testing.T) {
	Convey("Iterating through a non-existent directory", t, func() {
		it, err := IteratePath(context.Background(), filepath.Join("thispath", "shouldnot", "exist"), nil)

		Convey("should error with an i/o failure.", func() {
			So(it, ShouldBeNil)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrIO), ShouldBeTrue)
		})
	})

	Convey("Opening a file for iteration", t, func() {
		it, err := IteratePath(context.Background(), testDataDir("filesystem", "f1"), nil)

		Convey("should error.", func() {
			So(it, ShouldBeNil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestIterateSuccess(t *testing.T) {
	Convey("Iterating through a directory with a single goroutine", t, func() {
		it, err := IteratePath(context.Background(), testDataDir("filesystem"), nil)

		Convey("should not error.", func() {
			So(err, ShouldBeNil)
			if it == nil { // Workaround for goconvey bug goconvey/#612
				So(it, ShouldNotBeNil)
			}
		})

		filenames := []string{
			testDataDir("filesystem", "f1"),
			testDataDir("filesystem", "f2.exe"),
			testDataDir("filesystem", "dir1", "dir3", "f3.dll"),
			testDataDir("filesystem", "dir2", "f4"),
		}
		Convey("should yield all files.", func() {
			found := make([]string, 0)
			for {
				f, err := it.Next()
				if err == io.EOF {
					break
				}

				So(err, ShouldBeNil)
				So(f, ShouldNotBeNil)
				found = append(found, f.Path())
			}
			// Sort both because the order does not matter
			sort.Slice(found, func(i, j int) bool {
				return strings.Compare(found[i], found[j]) < 0
			})
			sort.Slice(filenames, func(i, j int) bool {
				return strings.Compare(filenames[i], filenames[j]) < 0
			})
			So(found, ShouldResemble, filenames)
		})

		Convey("when closing", func() {
			err := it.Close()
			Convey("should not error.", func() {
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Iterating with an extension filter", t, func() {
		it, err := IteratePath(context.Background(), testDataDir("filesystem"), []string{".EXE", "dll"})
		So(err, ShouldBeNil)
		defer it.Close()

		accepted := make([]string, 0)
		skipped := 0
		for {
			f, err := it.Next()
			if err == io.EOF {
				break
			}
			if err == ErrSkipped {
				skipped++
				continue
			}
			So(err, ShouldBeNil)
			accepted = append(accepted, filepath.Base(f.Path()))
		}
		sort.Strings(accepted)

		Convey("should accept matching files and skip the others.", func() {
			So(accepted, ShouldResemble, []string{"f2.exe", "f3.dll"})
			So(skipped, ShouldEqual, 2)
		})
	})
}

func TestFileList(t *testing.T) {
	Convey("Iterating a file list", t, func() {
		it := IterateFileList([]string{"a", "b"})
		defer it.Close()

		f, err := it.Next()
		So(err, ShouldBeNil)
		So(f.Path(), ShouldEqual, "a")
		f, err = it.Next()
		So(err, ShouldBeNil)
		So(f.Path(), ShouldEqual, "b")

		Convey("should end with io.EOF.", func() {
			_, err = it.Next()
			So(err, ShouldEqual, io.EOF)
		})
	})
}

func TestExpand(t *testing.T) {
	Convey("Expanding a directory without recursion", t, func() {
		files, err := Expand(context.Background(), []string{testDataDir("filesystem")}, ExpandOptions{})

		Convey("should only yield the direct children.", func() {
			So(err, ShouldBeNil)
			So(files, ShouldResemble, []string{
				testDataDir("filesystem", "f1"),
				testDataDir("filesystem", "f2.exe"),
			})
		})
	})

	Convey("Expanding a directory recursively", t, func() {
		files, err := Expand(context.Background(), []string{testDataDir("filesystem")}, ExpandOptions{Recurse: true})

		Convey("should yield all files sorted.", func() {
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 4)
			So(sort.StringsAreSorted(files), ShouldBeTrue)
		})
	})

	Convey("Expanding overlapping arguments", t, func() {
		files, err := Expand(context.Background(), []string{
			testDataDir("filesystem", "f1"),
			testDataDir("filesystem"),
			testDataDir("filesystem", "f1"),
		}, ExpandOptions{})

		Convey("should yield every file once.", func() {
			So(err, ShouldBeNil)
			So(files, ShouldResemble, []string{
				testDataDir("filesystem", "f1"),
				testDataDir("filesystem", "f2.exe"),
			})
		})
	})

	Convey("Expanding a missing path", t, func() {
		_, err := Expand(context.Background(), []string{testDataDir("missing")}, ExpandOptions{})

		Convey("should fail with an i/o failure.", func() {
			So(errors.Is(err, ErrIO), ShouldBeTrue)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Loading a file", t, func() {
		content, err := Load(testDataDir("filesystem", "f1"))
		So(err, ShouldBeNil)

		Convey("should expose its bytes.", func() {
			So(string(content.Data), ShouldEqual, "first file\n")
			So(content.Close(), ShouldBeNil)
		})
	})

	Convey("Loading an empty file", t, func() {
		path := filepath.Join(t.TempDir(), "empty")
		So(os.WriteFile(path, nil, 0644), ShouldBeNil)
		content, err := Load(path)

		Convey("should yield no data.", func() {
			So(err, ShouldBeNil)
			So(content.Data, ShouldBeEmpty)
			So(content.Close(), ShouldBeNil)
		})
	})

	Convey("Loading a missing file", t, func() {
		_, err := Load(testDataDir("missing"))

		Convey("should fail with an unwrappable i/o failure.", func() {
			So(errors.Is(err, ErrIO), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}

func TestReadRegion(t *testing.T) {
	Convey("Reading a region of a file", t, func() {
		path := testDataDir("filesystem", "f1")

		Convey("with offset and limit should return exactly that part.", func() {
			data, err := ReadRegion(path, 6, 4)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "file")
		})
		Convey("with a limit beyond the end should return the rest.", func() {
			data, err := ReadRegion(path, 6, 100)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "file\n")
		})
		Convey("with an offset beyond the end should return nothing.", func() {
			data, err := ReadRegion(path, 1000, 0)
			So(err, ShouldBeNil)
			So(data, ShouldBeEmpty)
		})
	})
}

func TestDoScanDir(t *testing.T) {
	Convey("Pseudo file systems should be skipped", t, func() {
		So(doScanDir("/proc"), ShouldBeFalse)
		So(doScanDir("/proc/1/fd"), ShouldBeFalse)
		So(doScanDir("/dev/shm"), ShouldBeFalse)
	})

	Convey("Bookkeeping directories should be skipped", t, func() {
		So(doScanDir(filepath.Join("mnt", "usb", "lost+found")), ShouldBeFalse)
		So(doScanDir(filepath.Join("mnt", "usb", "$RECYCLE.BIN")), ShouldBeFalse)
	})

	Convey("Other directories should be scanned", t, func() {
		So(doScanDir("/procedures"), ShouldBeTrue)
		So(doScanDir(filepath.Join("samples", "lost+found-not")), ShouldBeTrue)
	})
}
