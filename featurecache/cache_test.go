package featurecache

import (
	"testing"

	"github.com/fkie-cad/malw/peinfo"
	"github.com/fkie-cad/malw/testutil"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/targodan/go-errors"
)

type extractorMock struct {
	mock.Mock
}

func (m *extractorMock) ExtractBytes(data []byte) (*peinfo.Features, error) {
	args := m.Called(data)
	features, _ := args.Get(0).(*peinfo.Features)
	return features, args.Error(1)
}

type identifiedExtractor struct {
	*extractorMock
	id string
}

func (e identifiedExtractor) Identity() string {
	return e.id
}

func TestCache(t *testing.T) {
	Convey("The feature cache", t, func() {
		dir := t.TempDir()
		image := testutil.NewPEBuilder().
			AddSection(".text", []byte{0xC3}).
			AddImport("kernel32.dll", "Sleep").
			Build()

		Convey("should only extract once.", func() {
			extractor := new(extractorMock)
			extractor.On("ExtractBytes", image).Return(&peinfo.Features{Imphash: "abc", Exports: []string{"Run"}}, nil).Once()

			cache, err := Open(dir, extractor)
			So(err, ShouldBeNil)
			defer cache.Close()

			first, err := cache.ExtractBytes(image)
			So(err, ShouldBeNil)
			second, err := cache.ExtractBytes(image)
			So(err, ShouldBeNil)

			So(second.Imphash, ShouldEqual, "abc")
			So(second, ShouldResemble, first)
			extractor.AssertNumberOfCalls(t, "ExtractBytes", 1)
		})

		Convey("should remember malformed inputs.", func() {
			extractor := new(extractorMock)
			extractor.On("ExtractBytes", []byte("junk")).Return(nil, &peinfo.MalformedError{Reason: "missing MZ signature"}).Once()

			cache, err := Open(dir, extractor)
			So(err, ShouldBeNil)
			defer cache.Close()

			_, err = cache.ExtractBytes([]byte("junk"))
			So(errors.Is(err, peinfo.ErrMalformedContainer), ShouldBeTrue)
			_, err = cache.ExtractBytes([]byte("junk"))
			So(errors.Is(err, peinfo.ErrMalformedContainer), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "missing MZ signature")
			extractor.AssertNumberOfCalls(t, "ExtractBytes", 1)
		})

		Convey("should not cache other errors.", func() {
			extractor := new(extractorMock)
			extractor.On("ExtractBytes", mock.Anything).Return(nil, errors.New("out of memory"))

			cache, err := Open(dir, extractor)
			So(err, ShouldBeNil)
			defer cache.Close()

			_, err = cache.ExtractBytes([]byte("data"))
			So(err, ShouldNotBeNil)
			_, err = cache.ExtractBytes([]byte("data"))
			So(err, ShouldNotBeNil)
			extractor.AssertNumberOfCalls(t, "ExtractBytes", 2)
		})

		Convey("should persist across reopening.", func() {
			cache, err := Open(dir, peinfo.NewExtractor())
			So(err, ShouldBeNil)
			features, err := cache.ExtractBytes(image)
			So(err, ShouldBeNil)
			So(cache.Close(), ShouldBeNil)

			extractor := new(extractorMock)
			cache, err = Open(dir, identifiedExtractor{extractor, peinfo.NewExtractor().Identity()})
			So(err, ShouldBeNil)
			defer cache.Close()

			cached, err := cache.ExtractBytes(image)
			So(err, ShouldBeNil)
			So(cached.Imphash, ShouldEqual, features.Imphash)
			So(cached.Sections, ShouldResemble, features.Sections)
			extractor.AssertNotCalled(t, "ExtractBytes", mock.Anything)
		})

		Convey("should keep results of differently configured extractors apart.", func() {
			builtin := new(extractorMock)
			builtin.On("ExtractBytes", image).Return(&peinfo.Features{Signature: "Builtin"}, nil).Once()
			cache, err := Open(dir, identifiedExtractor{builtin, "sig:builtin"})
			So(err, ShouldBeNil)
			_, err = cache.ExtractBytes(image)
			So(err, ShouldBeNil)
			So(cache.Close(), ShouldBeNil)

			custom := new(extractorMock)
			custom.On("ExtractBytes", image).Return(&peinfo.Features{Signature: "Custom"}, nil).Once()
			cache, err = Open(dir, identifiedExtractor{custom, "sig:custom"})
			So(err, ShouldBeNil)
			defer cache.Close()

			features, err := cache.ExtractBytes(image)
			So(err, ShouldBeNil)
			So(features.Signature, ShouldEqual, "Custom")
			custom.AssertNumberOfCalls(t, "ExtractBytes", 1)
		})
	})
}
