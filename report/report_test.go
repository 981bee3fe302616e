package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fkie-cad/malw"
	"github.com/fkie-cad/malw/archiver"
	"github.com/fkie-cad/malw/bytescan"
	"github.com/fkie-cad/malw/correlate"
	"github.com/fkie-cad/malw/ioc"
	"github.com/fkie-cad/malw/peinfo"
	"github.com/fkie-cad/malw/testutil"
	"github.com/fkie-cad/malw/version"

	"github.com/targodan/go-errors"
	"golang.org/x/crypto/openpgp"

	. "github.com/smartystreets/goconvey/convey"
)

func sampleReport() *Report {
	data := testutil.NewPEBuilder().
		AddSection(".text", bytes.Repeat([]byte{0x55, 0x8b, 0xec, 0xc3}, 128)).
		AddImport("kernel32.dll", "ExitProcess").
		Build()
	features, err := peinfo.NewExtractor().ExtractBytes(data)
	So(err, ShouldBeNil)

	r := New()
	r.AddFeatures("a.exe", features, []*malw.RuleMatch{{Rule: "mz", Namespace: "default", Offsets: []uint64{0}}})
	r.AddFailure("b.exe", peinfo.ErrMalformedContainer)
	r.AddStrings("a.exe", []*ioc.ClassifiedString{
		{
			RawString: &bytescan.RawString{Value: "test@test.com", Offset: 16, Encoding: bytescan.ASCII},
			Match:     &ioc.Match{Category: ioc.Email, Hint: "Email"},
		},
		{RawString: &bytescan.RawString{Value: "kernel32.dll", Offset: 40, Encoding: bytescan.Wide}},
	})
	r.AddStrings("b.exe", nil)
	r.Correlation = &correlate.Report{
		Similarities: []*correlate.Pair{{A: "a.exe", B: "c.exe", Score: 88}},
		Failures:     []*correlate.Failure{},
	}
	return r
}

func TestMeta(t *testing.T) {
	Convey("New meta information", t, func() {
		m := NewMeta()

		Convey("should carry the versions and a schema for every part.", func() {
			So(m.MalwVersion, ShouldResemble, version.MalwVersion)
			So(m.FormatVersion, ShouldResemble, FormatVersion)
			So(m.SchemaURLs, ShouldHaveLength, 4)
			So(m.SchemaURLs[FeaturesFileName], ShouldEqual, "https://fkie-cad.github.io/malw/reportFormat/1.0.0/features.schema.json")
		})

		Convey("should have a unique id.", func() {
			So(m.ID, ShouldNotEqual, NewMeta().ID)
		})

		Convey("should describe the host.", func() {
			So(m.Host, ShouldNotBeNil)
			So(m.Host.Hostname, ShouldNotBeEmpty)
		})
	})
}

func TestTime(t *testing.T) {
	Convey("A report time", t, func() {
		now := Now()
		b, err := json.Marshal(now)
		So(err, ShouldBeNil)

		Convey("should round trip with microsecond precision.", func() {
			var parsed Time
			So(json.Unmarshal(b, &parsed), ShouldBeNil)
			So(parsed.Equal(now.Truncate(time.Microsecond)), ShouldBeTrue)
		})

		Convey("should reject non strings.", func() {
			var parsed Time
			So(json.Unmarshal([]byte("12"), &parsed), ShouldNotBeNil)
		})
	})
}

func TestInspectedPaths(t *testing.T) {
	Convey("The inspected paths of a report", t, func() {
		r := New()
		r.AddFeatures("a.exe", &peinfo.Features{}, nil)
		r.AddFailure("b.exe", errors.New("broken"))
		r.AddFeatures("c.exe", &peinfo.Features{}, nil)

		Convey("should skip failures and keep the order.", func() {
			So(r.InspectedPaths(), ShouldResemble, []string{"a.exe", "c.exe"})
			So(r.FeaturesOf("b.exe").Error, ShouldEqual, "broken")
			So(r.FeaturesOf("x.exe"), ShouldBeNil)
		})
	})
}

func writeAndRead(opts BundleOptions, configure func(*FileReader)) (*FileReader, *Report, string) {
	rprt := sampleReport()
	path := filepath.Join(os.TempDir(), "malw-report-test"+opts.SuggestedFileExtension())
	So(WriteFile(path, rprt, opts), ShouldBeNil)

	rdr := NewFileReader(path)
	if configure != nil {
		configure(rdr)
	}
	return rdr, rprt, path
}

func shouldRoundTrip(rdr *FileReader, rprt *Report) {
	So(NewValidator().ValidateReport(rdr), ShouldBeNil)

	parsed, err := NewParser().Parse(rdr)
	So(err, ShouldBeNil)
	So(parsed.Meta.ID, ShouldEqual, rprt.Meta.ID)
	So(parsed.Features, ShouldHaveLength, 2)
	So(parsed.Features[0].Features.Imphash, ShouldEqual, rprt.Features[0].Features.Imphash)
	So(parsed.Features[0].Features.Imports.Libraries(), ShouldResemble, []string{"kernel32.dll"})
	So(parsed.Features[0].Matches[0].Rule, ShouldEqual, "mz")
	So(parsed.Features[1].Error, ShouldEqual, peinfo.ErrMalformedContainer.Error())
	So(parsed.Strings, ShouldHaveLength, 2)
	So(parsed.Strings[0].Strings[0].Value, ShouldEqual, "test@test.com")
	So(parsed.Strings[0].Strings[0].Match.Category, ShouldEqual, ioc.Email)
	So(parsed.Strings[0].Strings[1].Encoding, ShouldEqual, bytescan.Wide)
	So(parsed.Strings[1].Strings, ShouldBeEmpty)
	So(parsed.Correlation.Similarities[0].Score, ShouldEqual, 88)
	So(parsed.Correlation.Imphashes, ShouldNotBeNil)
}

func TestBundleRoundTrip(t *testing.T) {
	Convey("A compressed tar bundle", t, func() {
		rdr, rprt, path := writeAndRead(BundleOptions{}, nil)
		defer os.Remove(path)
		defer rdr.Close()

		Convey("should be named accordingly.", func() {
			So(path, ShouldEndWith, ".tar.zst")
		})
		Convey("should validate and parse back.", func() {
			shouldRoundTrip(rdr, rprt)
		})
	})

	Convey("A password encrypted tar bundle", t, func() {
		rdr, rprt, path := writeAndRead(BundleOptions{Password: "secret"}, func(r *FileReader) {
			r.SetPassword("secret")
		})
		defer os.Remove(path)

		Convey("should be named accordingly.", func() {
			So(path, ShouldEndWith, ".tar.zst.gpg")
		})
		Convey("should validate and parse back with the password.", func() {
			shouldRoundTrip(rdr, rprt)
		})
		Convey("should not open without the password.", func() {
			plain := NewFileReader(path)
			_, err := plain.OpenMeta()
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A key encrypted tar bundle", t, func() {
		entity, err := openpgp.NewEntity("malw", "", "malw@example.com", nil)
		So(err, ShouldBeNil)
		ring := openpgp.EntityList{entity}

		rdr, rprt, path := writeAndRead(BundleOptions{Keyring: ring}, func(r *FileReader) {
			r.SetKeyring(ring)
		})
		defer os.Remove(path)

		Convey("should validate and parse back with the key.", func() {
			shouldRoundTrip(rdr, rprt)
		})
	})

	Convey("An encrypted zip bundle", t, func() {
		rdr, rprt, path := writeAndRead(BundleOptions{ZIPPassword: "infected"}, func(r *FileReader) {
			r.SetPassword("infected")
		})
		defer os.Remove(path)

		Convey("should be named accordingly.", func() {
			So(path, ShouldEndWith, ".zip")
		})
		Convey("should validate and parse back with the password.", func() {
			shouldRoundTrip(rdr, rprt)
		})
	})
}

func TestBundleOptions(t *testing.T) {
	Convey("Bundle options", t, func() {
		ring := openpgp.EntityList{}

		Convey("should reject pgp password and key.", func() {
			So(BundleOptions{Password: "a", Keyring: ring}.Validate(), ShouldNotBeNil)
		})
		Convey("should reject pgp with zip.", func() {
			So(BundleOptions{Password: "a", ZIPPassword: "b"}.Validate(), ShouldNotBeNil)
		})
		Convey("should accept a single choice.", func() {
			So(BundleOptions{Keyring: ring}.Validate(), ShouldBeNil)
			So(BundleOptions{ZIPPassword: "b"}.Validate(), ShouldBeNil)
		})
	})
}

type bufferCloser struct {
	bytes.Buffer
}

func (b *bufferCloser) Close() error {
	return nil
}

func writeTar(parts map[string]string, order []string) string {
	out := &bufferCloser{}
	a := archiver.NewTarArchiver(out)
	for _, name := range order {
		w, err := a.Create(name)
		So(err, ShouldBeNil)
		w.Write([]byte(parts[name]))
		So(w.Close(), ShouldBeNil)
	}
	So(a.Close(), ShouldBeNil)

	path := filepath.Join(os.TempDir(), "malw-invalid-report.tar")
	So(os.WriteFile(path, out.Bytes(), 0644), ShouldBeNil)
	return path
}

func TestValidator(t *testing.T) {
	Convey("Validating a bundle", t, func() {
		meta, err := json.Marshal(NewMeta())
		So(err, ShouldBeNil)
		parts := map[string]string{
			MetaFileName:        string(meta),
			FeaturesFileName:    `{"path":"a.exe","error":"broken"}` + "\n",
			StringsFileName:     `{"path":"a.exe","strings":[{"value":"abcd","offset":0,"encoding":"ascii"}]}` + "\n",
			CorrelationFileName: `{"similarities":[],"imphashes":[],"sections":[],"failures":[]}`,
		}
		order := []string{MetaFileName, FeaturesFileName, StringsFileName, CorrelationFileName}

		Convey("of a plain tar with valid parts should succeed.", func() {
			path := writeTar(parts, order)
			defer os.Remove(path)
			So(NewValidator().ValidateReport(NewFileReader(path)), ShouldBeNil)
		})

		Convey("with a negative string offset should fail on the strings part.", func() {
			parts[StringsFileName] = `{"path":"a.exe","strings":[{"value":"abcd","offset":-1,"encoding":"ascii"}]}`
			path := writeTar(parts, order)
			defer os.Remove(path)
			err := NewValidator().ValidateReport(NewFileReader(path))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, StringsFileName)
		})

		Convey("with a single file group should fail on the correlation part.", func() {
			parts[CorrelationFileName] = `{"similarities":[],"imphashes":[{"imphash":"e5641a62e8c7a1c53514270d952b2450","files":["a.exe"]}],"sections":[],"failures":[]}`
			path := writeTar(parts, order)
			defer os.Remove(path)
			err := NewValidator().ValidateReport(NewFileReader(path))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, CorrelationFileName)
		})

		Convey("with features and an error at once should fail.", func() {
			parts[FeaturesFileName] = `{"path":"a.exe","error":"broken","features":{}}`
			path := writeTar(parts, order)
			defer os.Remove(path)
			So(NewValidator().ValidateReport(NewFileReader(path)), ShouldNotBeNil)
		})

		Convey("with a foreign schema URL should fail.", func() {
			parts[MetaFileName] = strings.Replace(parts[MetaFileName], "https://fkie-cad.github.io/malw/reportFormat/1.0.0/strings", "https://example.com/strings", 1)
			path := writeTar(parts, order)
			defer os.Remove(path)
			So(NewValidator().ValidateReport(NewFileReader(path)), ShouldNotBeNil)
		})

		Convey("without a correlation part should report it missing.", func() {
			path := writeTar(parts, order[:3])
			defer os.Remove(path)
			err := NewValidator().ValidateReport(NewFileReader(path))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, CorrelationFileName)
		})

		Convey("of a missing file should be an IO error.", func() {
			_, err := NewFileReader(filepath.Join(os.TempDir(), "does-not-exist.tar")).OpenMeta()
			So(err, ShouldNotBeNil)
		})
	})
}
