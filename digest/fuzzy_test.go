package digest

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func randomBytes(seed int64, n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func TestFuzzyHash(t *testing.T) {
	Convey("Fuzzy hashing", t, func() {
		original := randomBytes(42, 64*1024)
		modified := append([]byte{}, original...)
		for i := 30000; i < 30040; i++ {
			modified[i] ^= 0xff
		}
		unrelated := randomBytes(7, 64*1024)

		hOriginal, err := FuzzyHash(original)
		So(err, ShouldBeNil)
		hModified, err := FuzzyHash(modified)
		So(err, ShouldBeNil)
		hUnrelated, err := FuzzyHash(unrelated)
		So(err, ShouldBeNil)

		Convey("should be deterministic.", func() {
			again, err := FuzzyHash(append([]byte{}, original...))
			So(err, ShouldBeNil)
			So(again, ShouldEqual, hOriginal)
			So(hOriginal, ShouldNotBeEmpty)
		})

		Convey("should be symmetric when comparing.", func() {
			ab, err := FuzzySimilarity(hOriginal, hModified)
			So(err, ShouldBeNil)
			ba, err := FuzzySimilarity(hModified, hOriginal)
			So(err, ShouldBeNil)
			So(ab, ShouldEqual, ba)
		})

		Convey("should rank near duplicates above unrelated data.", func() {
			near, err := FuzzySimilarity(hOriginal, hModified)
			So(err, ShouldBeNil)
			far, err := FuzzySimilarity(hOriginal, hUnrelated)
			So(err, ShouldBeNil)
			So(near, ShouldBeGreaterThan, far)
			So(near, ShouldBeLessThanOrEqualTo, 100)
			So(far, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("should yield an empty digest for empty input.", func() {
			h, err := FuzzyHash(nil)
			So(err, ShouldBeNil)
			So(h, ShouldBeEmpty)

			score, err := FuzzySimilarity(h, hOriginal)
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 0)
		})

		Convey("should still match small identical inputs.", func() {
			small := randomBytes(3, 3*1024)
			hA, err := FuzzyHash(small)
			So(err, ShouldBeNil)
			hB, err := FuzzyHash(append([]byte{}, small...))
			So(err, ShouldBeNil)
			So(hA, ShouldNotBeEmpty)
			So(hB, ShouldEqual, hA)

			score, err := FuzzySimilarity(hA, hB)
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 100)
		})

		Convey("should hash a handful of bytes.", func() {
			h, err := FuzzyHash([]byte("tiny"))
			So(err, ShouldBeNil)
			So(h, ShouldNotBeEmpty)
		})
	})
}
