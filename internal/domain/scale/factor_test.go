package scale_test

import (
	"math"
	"testing"

	"github.com/okian/scalefilter/internal/domain/scale"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseFactor(t *testing.T) {
	Convey("Given well-formed factor text", t, func() {
		cases := map[string]float64{
			"100.0":   100.0,
			"  2.5":   2.5,
			"-1.5":    -1.5,
			"+3":      3,
			"0":       0,
			".5":      0.5,
			"5.":      5,
			"1e3":     1000,
			"2.5E-1":  0.25,
			"100.0\n": 100.0,
		}

		Convey("Then it parses completely", func() {
			for text, want := range cases {
				got, ok := scale.ParseFactor(text)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, want)
			}
		})
	})

	Convey("Given text with a numeric prefix", t, func() {
		cases := map[string]float64{
			"12abc":   12,
			"1.5x":    1.5,
			"3e":      3,
			"4e+":     4,
			"-7.25 %": -7.25,
			"2 3":     2,
		}

		Convey("Then the prefix is used and the text is flagged", func() {
			for text, want := range cases {
				got, ok := scale.ParseFactor(text)
				So(ok, ShouldBeFalse)
				So(got, ShouldEqual, want)
			}
		})
	})

	Convey("Given text without any number", t, func() {
		Convey("Then the factor is zero", func() {
			for _, text := range []string{"abc", "", "   ", "-", ".", "e5", "+.e1"} {
				got, ok := scale.ParseFactor(text)
				So(ok, ShouldBeFalse)
				So(got, ShouldEqual, 0.0)
			}
		})
	})

	Convey("Given special values", t, func() {
		Convey("Then infinities and NaN follow strtod", func() {
			f, ok := scale.ParseFactor("inf")
			So(ok, ShouldBeTrue)
			So(math.IsInf(f, 1), ShouldBeTrue)

			f, ok = scale.ParseFactor("-Infinity")
			So(ok, ShouldBeTrue)
			So(math.IsInf(f, -1), ShouldBeTrue)

			f, _ = scale.ParseFactor("nan")
			So(math.IsNaN(f), ShouldBeTrue)

			f, ok = scale.ParseFactor("1e400")
			So(ok, ShouldBeFalse)
			So(math.IsInf(f, 1), ShouldBeTrue)
		})
	})

	Convey("Given the default text", t, func() {
		f, ok := scale.ParseFactor(scale.DefaultFactorText)
		So(ok, ShouldBeTrue)
		So(f, ShouldEqual, scale.DefaultFactor)
	})
}
