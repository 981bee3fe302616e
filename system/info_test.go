package system

import (
	"runtime"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGetInfo(t *testing.T) {
	Convey("Retrieving system information should yield plausible results", t, func() {
		info, err := GetInfo()
		So(err, ShouldBeNil)
		So(info.OSName, ShouldNotBeEmpty)
		So(info.OSArch, ShouldEqual, runtime.GOARCH)
		So(info.Hostname, ShouldNotBeEmpty)
		So(info.NumCPUs, ShouldBeGreaterThan, 0)
	})
}
