package malw

import (
	"fmt"
	"testing"

	"github.com/hillu/go-yara/v4"

	. "github.com/smartystreets/goconvey/convey"
)

func ExampleJoin() {
	fmt.Println(Join([]string{"ascii", "wide", "all"}, ", ", " or "))
	// Output: ascii, wide or all
}

func TestJoin(t *testing.T) {
	Convey("Joining", t, func() {
		Convey("nothing should yield an empty string.", func() {
			So(Join(nil, ", ", " and "), ShouldEqual, "")
		})
		Convey("a single element should yield the element.", func() {
			So(Join([]string{".text"}, ", ", " and "), ShouldEqual, ".text")
		})
		Convey("two elements should only use the final glue.", func() {
			So(Join([]string{".text", ".data"}, ", ", " and "), ShouldEqual, ".text and .data")
		})
		Convey("several elements should use the final glue last.", func() {
			So(Join([]string{".text", ".data", ".rsrc", ".reloc"}, ", ", " and "), ShouldEqual, ".text, .data, .rsrc and .reloc")
		})
	})
}

func TestOffsetsFromMatches(t *testing.T) {
	Convey("Offsets of match strings", t, func() {
		matches := []yara.MatchString{{Offset: 0x10}, {Offset: 0x400}}

		Convey("should be absolute given a base.", func() {
			So(OffsetsFromMatches(matches, 0x1000), ShouldResemble, []uint64{0x1010, 0x1400})
		})
		Convey("should be unchanged without a base.", func() {
			So(OffsetsFromMatches(matches, 0), ShouldResemble, []uint64{0x10, 0x400})
		})
		Convey("of no matches should be empty.", func() {
			So(OffsetsFromMatches(nil, 0), ShouldResemble, []uint64{})
		})
	})
}

func TestFormatSlice(t *testing.T) {
	Convey("Formatting offsets", t, func() {
		offsets := []uint64{0x10, 0xFF}

		Convey("should format every element.", func() {
			So(FormatSlice("0x%X", offsets), ShouldResemble, []string{"0x10", "0xFF"})
		})
		Convey("should pass on additional arguments.", func() {
			So(FormatSlice("%d in %s", offsets, "a.exe"), ShouldResemble, []string{"16 in a.exe", "255 in a.exe"})
		})
	})
}
