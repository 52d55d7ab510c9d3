package scale_test

import (
	"math"
	"testing"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/internal/domain/scale"
	. "github.com/smartystreets/goconvey/convey"
)

func mixedBatch() model.Batch {
	return model.Batch{
		model.NewReading("pump",
			model.NewDatapoint("rpm", model.IntegerValue(1500)),
			model.NewDatapoint("pressure", model.FloatValue(2.5)),
			model.NewDatapoint("state", model.StringValue("running")),
		),
		model.NewReading("vibration",
			model.NewDatapoint("samples", model.ArrayValue([]model.Value{model.IntegerValue(1), model.FloatValue(0.5)})),
			model.NewDatapoint("axis", model.ObjectValue([]model.Datapoint{
				{Name: "x", Value: model.IntegerValue(3)},
				{Name: "y", Value: model.FloatValue(4.5)},
			})),
			model.NewDatapoint("rms", model.FloatValue(-0.75)),
		),
	}
}

// snapshot captures every datapoint value by position for later comparison.
func snapshot(b model.Batch) [][]model.Value {
	out := make([][]model.Value, len(b))
	for i, r := range b {
		for _, dp := range r.Datapoints {
			out[i] = append(out[i], dp.Value)
		}
	}
	return out
}

func TestApply(t *testing.T) {
	Convey("Given the temp/flag batch", t, func() {
		batch := model.Batch{
			model.NewReading("temp", model.NewDatapoint("value", model.IntegerValue(20))),
			model.NewReading("flag", model.NewDatapoint("active", model.StringValue("on"))),
		}

		Convey("When scaling by 100 with the filter enabled", func() {
			out := scale.Apply(batch, 100.0, true)

			Convey("Then the integer is multiplied and the string untouched", func() {
				So(out[0].AssetCode, ShouldEqual, "temp")
				So(out[0].Datapoints[0].Name, ShouldEqual, "value")
				So(out[0].Datapoints[0].Value.Kind(), ShouldEqual, model.KindInteger)
				So(out[0].Datapoints[0].Value.Int(), ShouldEqual, 2000)
				So(out[1].AssetCode, ShouldEqual, "flag")
				So(out[1].Datapoints[0].Value.Str(), ShouldEqual, "on")
			})
		})

		Convey("When the filter is disabled", func() {
			out := scale.Apply(batch, 100.0, false)

			Convey("Then nothing changes", func() {
				So(out[0].Datapoints[0].Value.Int(), ShouldEqual, 20)
				So(out[1].Datapoints[0].Value.Str(), ShouldEqual, "on")
			})
		})

		Convey("When the factor came from malformed text", func() {
			factor, ok := scale.ParseFactor("abc")
			scale.Apply(batch, factor, true)

			Convey("Then numeric values collapse to zero", func() {
				So(ok, ShouldBeFalse)
				So(factor, ShouldEqual, 0.0)
				So(batch[0].Datapoints[0].Value.Int(), ShouldEqual, 0)
				So(batch[1].Datapoints[0].Value.Str(), ShouldEqual, "on")
			})
		})
	})

	Convey("Given a mixed batch", t, func() {
		batch := mixedBatch()
		before := snapshot(batch)
		readings := []*model.Reading{batch[0], batch[1]}
		points := []*model.Datapoint{
			batch[0].Datapoints[0], batch[0].Datapoints[1], batch[0].Datapoints[2],
			batch[1].Datapoints[0], batch[1].Datapoints[1], batch[1].Datapoints[2],
		}

		Convey("When applying a factor of 1", func() {
			scale.Apply(batch, 1, true)

			Convey("Then every value is exactly unchanged", func() {
				after := snapshot(batch)
				for i := range before {
					for j := range before[i] {
						So(after[i][j].Equal(before[i][j]), ShouldBeTrue)
					}
				}
			})
		})

		Convey("When the filter is disabled with any factor", func() {
			for _, f := range []float64{0, -3, 1e9, math.Pi} {
				scale.Apply(batch, f, false)
			}

			Convey("Then the batch is identical", func() {
				after := snapshot(batch)
				for i := range before {
					for j := range before[i] {
						So(after[i][j].Equal(before[i][j]), ShouldBeTrue)
					}
				}
			})
		})

		Convey("When applying a factor of 10", func() {
			out := scale.Apply(batch, 10, true)

			Convey("Then the same batch, readings and datapoints are returned in order", func() {
				So(&out[0], ShouldPointTo, &batch[0])
				So(len(out), ShouldEqual, 2)
				for i, r := range out {
					So(r, ShouldPointTo, readings[i])
				}
				So(out[0].Datapoints[0], ShouldPointTo, points[0])
				So(out[0].Datapoints[2], ShouldPointTo, points[2])
				So(out[1].Datapoints[1], ShouldPointTo, points[4])
				So(len(out[0].Datapoints), ShouldEqual, 3)
				So(len(out[1].Datapoints), ShouldEqual, 3)
				So(out[1].Datapoints[1].Name, ShouldEqual, "axis")
			})

			Convey("And top-level numerics are scaled", func() {
				So(out[0].Datapoints[0].Value.Int(), ShouldEqual, 15000)
				So(out[0].Datapoints[1].Value.Float(), ShouldEqual, 25.0)
				So(out[1].Datapoints[2].Value.Float(), ShouldEqual, -7.5)
			})

			Convey("And composites are not descended into", func() {
				So(out[1].Datapoints[0].Value.Equal(before[1][0]), ShouldBeTrue)
				So(out[1].Datapoints[1].Value.Equal(before[1][1]), ShouldBeTrue)
				So(out[1].Datapoints[1].Value.Object()[0].Value.Int(), ShouldEqual, 3)
				So(out[0].Datapoints[2].Value.Str(), ShouldEqual, "running")
			})
		})

		Convey("When applying twice", func() {
			scale.Apply(batch, 2, true)
			scale.Apply(batch, 2, true)

			Convey("Then it is equivalent to the squared factor", func() {
				So(batch[0].Datapoints[0].Value.Int(), ShouldEqual, 6000)
				So(batch[0].Datapoints[1].Value.Float(), ShouldEqual, 10.0)
			})
		})
	})

	Convey("Given an empty batch", t, func() {
		Convey("Then applying is a no-op", func() {
			So(len(scale.Apply(model.Batch{}, 5, true)), ShouldEqual, 0)
			So(scale.Apply(nil, 5, true), ShouldBeNil)
		})
	})

	Convey("Given a batch with nil entries", t, func() {
		r := &model.Reading{AssetCode: "a", Datapoints: []*model.Datapoint{nil, model.NewDatapoint("v", model.IntegerValue(2))}}
		batch := model.Batch{nil, r}

		Convey("Then nil entries are skipped in place", func() {
			st := scale.ApplyCounted(batch, 3, true)
			So(batch[0], ShouldBeNil)
			So(r.Datapoints[0], ShouldBeNil)
			So(r.Datapoints[1].Value.Int(), ShouldEqual, 6)
			So(st.Readings, ShouldEqual, 1)
			So(st.Integers, ShouldEqual, 1)
		})
	})
}

func TestApplyCounted(t *testing.T) {
	Convey("Given a mixed batch", t, func() {
		batch := mixedBatch()

		Convey("When counting an enabled pass", func() {
			st := scale.ApplyCounted(batch, 2, true)

			Convey("Then every datapoint is accounted for", func() {
				So(st.Readings, ShouldEqual, 2)
				So(st.Integers, ShouldEqual, 1)
				So(st.Floats, ShouldEqual, 2)
				So(st.Skipped, ShouldEqual, 3)
				So(st.Scaled(), ShouldEqual, 3)
			})
		})

		Convey("When counting a disabled pass", func() {
			st := scale.ApplyCounted(batch, 2, false)

			Convey("Then nothing is visited", func() {
				So(st, ShouldResemble, scale.Stats{})
			})
		})
	})
}

func TestScaleValue(t *testing.T) {
	Convey("Given integer values", t, func() {
		cases := []struct {
			in     int64
			factor float64
			want   int64
		}{
			{7, 100.0, 700},
			{-7, 1.5, -10},
			{7, 1.5, 10},
			{5, 0, 0},
			{9, -1, -9},
			{3, 0.3, 0},
			{-1, 0.999, 0},
			{1 << 40, 0.5, 1 << 39},
		}

		Convey("Then the product is truncated toward zero", func() {
			for _, tc := range cases {
				v := model.IntegerValue(tc.in)
				So(scale.ScaleValue(&v, tc.factor), ShouldBeTrue)
				So(v.Kind(), ShouldEqual, model.KindInteger)
				So(v.Int(), ShouldEqual, tc.want)
				So(v.Int(), ShouldEqual, int64(float64(tc.in)*tc.factor))
			}
		})
	})

	Convey("Given float values", t, func() {
		Convey("Then the product is plain float multiplication", func() {
			for _, tc := range []struct{ in, factor float64 }{
				{2.5, 0.5}, {-1.1, 3}, {0.1, 0.2}, {1e300, 10}, {42, 0},
			} {
				v := model.FloatValue(tc.in)
				So(scale.ScaleValue(&v, tc.factor), ShouldBeTrue)
				So(v.Kind(), ShouldEqual, model.KindFloat)
				So(v.Float(), ShouldEqual, tc.in*tc.factor)
			}
			v := model.FloatValue(2.5)
			scale.ScaleValue(&v, 0.5)
			So(v.Float(), ShouldEqual, 1.25)
		})
	})

	Convey("Given non-numeric values", t, func() {
		values := []model.Value{
			model.StringValue("12"),
			model.ArrayValue([]model.Value{model.IntegerValue(1)}),
			model.ObjectValue([]model.Datapoint{{Name: "n", Value: model.FloatValue(1)}}),
		}

		Convey("Then they are reported untouched", func() {
			for _, v := range values {
				orig := v
				So(scale.ScaleValue(&v, 100), ShouldBeFalse)
				So(v.Equal(orig), ShouldBeTrue)
			}
		})
	})
}
