package app

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fkie-cad/malw/testutil"

	"github.com/fatih/color"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func run(input string, args ...string) (string, error) {
	out := &bytes.Buffer{}
	a := NewApp()
	a.Writer = out
	a.ErrWriter = io.Discard
	a.Reader = strings.NewReader(input)
	err := a.Run(append([]string{"malw", "--log-level", "error"}, args...))
	return out.String(), err
}

func sample(imports ...string) []byte {
	return testutil.NewPEBuilder().
		AddSection(".text", bytes.Repeat([]byte("0123456789abcdef"), 512)).
		AddSection(".data", []byte("test@test.com\x00http://example.com/payload\x00")).
		AddImport("kernel32.dll", imports...).
		Build()
}

func writeFile(dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, data, 0644), ShouldBeNil)
	return path
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestHashes(t *testing.T) {
	Convey("Hashing a directory", t, func() {
		dir := t.TempDir()
		a := writeFile(dir, "a", []byte("first"))
		b := writeFile(dir, "b", []byte("second"))

		Convey("should print every checksum of every file.", func() {
			out, err := run("", "hashes", dir)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, a+" "+md5Hex([]byte("first"))+" md5")
			So(out, ShouldContainSubstring, b+" "+md5Hex([]byte("second"))+" md5")
			So(out, ShouldContainSubstring, "sha256")
			So(out, ShouldContainSubstring, "---")
		})

		Convey("with a single hash function should print only that one.", func() {
			out, err := run("", "hashes", "--hash-function", "sha1", a)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "sha1")
			So(out, ShouldNotContainSubstring, "md5")
		})

		Convey("with an unknown hash function should fail.", func() {
			_, err := run("", "hashes", "--hash-function", "crc", a)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Hashing without paths", t, func() {
		_, err := run("", "hashes")

		Convey("should fail.", func() {
			So(err, ShouldEqual, errNoPaths)
		})
	})
}

func TestSizeGuard(t *testing.T) {
	Convey("A file above the size limit", t, func() {
		dir := t.TempDir()
		path := writeFile(dir, "big", bytes.Repeat([]byte{'A'}, 64))

		Convey("should be skipped if the user declines.", func() {
			out, err := run("n\n", "--max-size", "16B", "hashes", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "File is bigger than 16 B.")
			So(out, ShouldNotContainSubstring, " md5")
		})

		Convey("should be read if the user agrees.", func() {
			out, err := run("y\n", "--max-size", "16B", "hashes", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, " md5")
		})

		Convey("should be read without asking if --yes is given.", func() {
			out, err := run("", "--max-size", "16B", "-y", "hashes", path)
			So(err, ShouldBeNil)
			So(out, ShouldNotContainSubstring, "File is bigger")
			So(out, ShouldContainSubstring, " md5")
		})

		Convey("should be skipped if no answer is available.", func() {
			out, err := run("", "--max-size", "16B", "hashes", path)
			So(err, ShouldBeNil)
			So(out, ShouldNotContainSubstring, " md5")
		})
	})

	Convey("An invalid size limit", t, func() {
		_, err := run("", "--max-size", "lots", "hashes", t.TempDir())

		Convey("should be rejected.", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid max-size")
		})
	})
}

func TestSelectionFilters(t *testing.T) {
	Convey("Hashing a directory with filters", t, func() {
		dir := t.TempDir()
		notes := writeFile(dir, "notes.TXT", []byte("some notes"))
		tiny := writeFile(dir, "tiny.txt", []byte("x"))
		blob := writeFile(dir, "blob.bin", []byte("binary blob"))

		Convey("should only hash files with the given extensions.", func() {
			out, err := run("", "hashes", "-e", "txt", dir)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, notes+" ")
			So(out, ShouldContainSubstring, tiny+" ")
			So(out, ShouldNotContainSubstring, blob)
		})

		Convey("should skip files below the minimum size.", func() {
			out, err := run("", "hashes", "--filter-size-min", "2B", "-e", "txt", dir)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, notes+" ")
			So(out, ShouldNotContainSubstring, tiny)
		})
	})
}

func TestFiletypes(t *testing.T) {
	Convey("Sniffing a text file", t, func() {
		path := writeFile(t.TempDir(), "notes.txt", []byte("just some text\n"))

		out, err := run("", "filetypes", path)

		Convey("should print the path and the type.", func() {
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, path+" - text/plain")
		})
	})
}

func TestStrings(t *testing.T) {
	Convey("Extracting strings", t, func() {
		path := writeFile(t.TempDir(), "blob", []byte("xx\x00test@test.com\x00yy\x00hello world\x00"))

		Convey("should print all strings without offsets by default.", func() {
			out, err := run("", "strings", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "test@test.com  Email?")
			So(out, ShouldContainSubstring, "hello world")
		})

		Convey("with a radix and only interesting strings should print the offset.", func() {
			out, err := run("", "strings", "--radix", "x", "--only-interesting", path)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "0x3  test@test.com  Email?\n")
		})

		Convey("with an offset should keep absolute offsets.", func() {
			out, err := run("", "strings", "--radix", "d", "--offset", "20", path)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "20  hello world\n")
		})

		Convey("with an invalid radix should fail.", func() {
			_, err := run("", "strings", "--radix", "b", path)
			So(err, ShouldNotBeNil)
		})

		Convey("on a directory should fail.", func() {
			_, err := run("", "strings", filepath.Dir(path))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPEAndValidate(t *testing.T) {
	Convey("Inspecting a directory with PE files and garbage", t, func() {
		dir := t.TempDir()
		samples := filepath.Join(dir, "samples")
		So(os.Mkdir(samples, 0755), ShouldBeNil)
		writeFile(samples, "a.exe", sample("ExitProcess", "Sleep"))
		writeFile(samples, "b.exe", sample("ExitProcess"))
		writeFile(samples, "c.bin", []byte("no pe here"))
		reportPath := filepath.Join(dir, "report")

		out, err := run("", "pe", "--workers", "2", "--report", reportPath, samples)

		Convey("should print the features of the valid files.", func() {
			So(out, ShouldContainSubstring, "Imphash:")
			So(out, ShouldContainSubstring, "kernel32.dll")
		})

		Convey("should report the invalid file.", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "c.bin")
			So(out, ShouldContainSubstring, "Can't analyze")
		})

		Convey("should write a valid report bundle.", func() {
			_, err := os.Stat(reportPath + ".tar.zst")
			So(err, ShouldBeNil)

			out, err := run("", "validate", reportPath+".tar.zst")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "is valid.")
			So(out, ShouldContainSubstring, "Files: 3")
		})
	})

	Convey("Inspecting with a feature cache", t, func() {
		dir := t.TempDir()
		path := writeFile(dir, "a.exe", sample("ExitProcess"))
		cache := filepath.Join(dir, "cache")

		first, err1 := run("", "pe", "--cache-dir", cache, path)
		second, err2 := run("", "pe", "--cache-dir", cache, path)

		Convey("should print the same result twice.", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(second, ShouldEqual, first)
		})
	})

	Convey("Validating a password protected report", t, func() {
		dir := t.TempDir()
		path := writeFile(dir, "a.exe", sample("ExitProcess"))
		reportPath := filepath.Join(dir, "report")

		_, err := run("", "pe", "--report", reportPath, "--password", "secret", path)
		So(err, ShouldBeNil)

		Convey("should succeed with the password.", func() {
			out, err := run("", "validate", "--password", "secret", reportPath+".tar.zst.gpg")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "is valid.")
		})

		Convey("should fail without the password.", func() {
			_, err := run("", "validate", reportPath+".tar.zst.gpg")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Conflicting report options", t, func() {
		path := writeFile(t.TempDir(), "a.exe", sample("ExitProcess"))

		_, err := run("", "pe", "--report", "r", "--password", "a", "--zip-password", "b", path)

		Convey("should be rejected before any work is done.", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "zip")
		})
	})
}

func TestCompare(t *testing.T) {
	Convey("Comparing two equal samples and a different one", t, func() {
		dir := t.TempDir()
		a := writeFile(dir, "a.exe", sample("ExitProcess", "Sleep"))
		b := writeFile(dir, "b.exe", sample("ExitProcess", "Sleep"))
		c := writeFile(dir, "c.exe", sample("ExitProcess"))

		out, err := run("", "compare", a, b, c)

		Convey("should rank the similarities and group the equal ones.", func() {
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "Comparison of fuzzy hashes:\n")
			So(out, ShouldContainSubstring, "Files with the same imphash:")
			So(out, ShouldContainSubstring, "Sections with the same md5 hashes:")
			So(out, ShouldContainSubstring, "section: .text")
		})
	})

	Convey("Comparing a single file", t, func() {
		a := writeFile(t.TempDir(), "a.exe", sample("ExitProcess"))

		_, err := run("", "compare", a)

		Convey("should fail.", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestOverview(t *testing.T) {
	Convey("The overview of a PE file", t, func() {
		data := sample("ExitProcess")
		path := writeFile(t.TempDir(), "a.exe", data)

		out, err := run("", "overview", path)

		Convey("should contain every section.", func() {
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "a.exe - ")
			for _, heading := range []string{"Checksums:", "Filetype:", "Interesting Strings?", "PE information:"} {
				So(out, ShouldContainSubstring, heading)
			}
			So(out, ShouldContainSubstring, md5Hex(data)+" md5")
			So(out, ShouldContainSubstring, "test@test.com  Email?")
		})
	})

	Convey("The overview of a non PE file", t, func() {
		path := writeFile(t.TempDir(), "notes.txt", []byte("just some text\n"))

		out, err := run("", "overview", path)

		Convey("should say so.", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Not a PE file.")
		})
	})
}

func TestConfig(t *testing.T) {
	Convey("A config file", t, func() {
		dir := t.TempDir()
		config := writeFile(dir, "malw.yaml", []byte("hash-function: md5\n"))
		path := writeFile(dir, "a", []byte("first"))

		Convey("should provide flag defaults.", func() {
			out, err := run("", "--config", config, "hashes", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, " md5")
			So(out, ShouldNotContainSubstring, "sha256")
		})

		Convey("should not override explicit flags.", func() {
			out, err := run("", "--config", config, "hashes", "--hash-function", "sha256", path)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "sha256")
			So(out, ShouldNotContainSubstring, " md5")
		})
	})
}

func TestDefaultOpts(t *testing.T) {
	Convey("Default options from the environment", t, func() {
		t.Setenv(OptsEnvVar, "--log-level debug -y")

		args, err := withDefaultOpts([]string{"malw", "hashes", "file"})

		Convey("should be inserted after the program name.", func() {
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []string{"malw", "--log-level", "debug", "-y", "hashes", "file"})
		})
	})

	Convey("Without default options", t, func() {
		t.Setenv(OptsEnvVar, "")

		args, err := withDefaultOpts([]string{"malw", "hashes"})

		Convey("the arguments should be unchanged.", func() {
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []string{"malw", "hashes"})
		})
	})
}
