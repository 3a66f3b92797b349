package timeseries_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/timeseries"
	"github.com/okian/spanline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	total = model.SeriesKey{Metric: types.MetricTotal, Resource: types.ResourceNodes}
	used  = model.SeriesKey{Metric: types.MetricCommitted, Resource: types.ResourceNodes}
	base  = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
)

func hour(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func point(k model.SeriesKey, h int, v float64) model.CountPoint[model.SeriesKey] {
	return model.CountPoint[model.SeriesKey]{Timestamp: hour(h), Key: k, Value: v}
}

func sample(k model.SeriesKey, h int, v float64) model.Sample[model.SeriesKey] {
	return model.Sample[model.SeriesKey]{Timestamp: hour(h), Key: k, Value: model.Float(v)}
}

func TestAlign(t *testing.T) {
	Convey("Given two groups observed at different times", t, func() {
		points := []model.CountPoint[model.SeriesKey]{
			point(used, 2, 3),
			point(total, 0, 10),
			point(total, 4, 8),
		}

		Convey("When aligning", func() {
			out := timeseries.Align(points)

			Convey("Then every group has every union timestamp", func() {
				So(len(out), ShouldEqual, 6)
			})

			Convey("Then values are forward filled", func() {
				So(out[0].Key, ShouldEqual, total)
				So(*out[1].Value, ShouldEqual, 10)
				So(out[1].Timestamp, ShouldEqual, hour(2))
				So(*out[2].Value, ShouldEqual, 8)
			})

			Convey("Then positions before the first observation stay nil", func() {
				So(out[3].Key, ShouldEqual, used)
				So(out[3].Value, ShouldBeNil)
				So(*out[4].Value, ShouldEqual, 3)
				So(*out[5].Value, ShouldEqual, 3)
			})

			Convey("And FillNull applies the caller's policy", func() {
				filled := timeseries.FillNull(out, 0)
				So(*filled[3].Value, ShouldEqual, 0)
				So(out[3].Value, ShouldBeNil)
				So(len(timeseries.Points(out)), ShouldEqual, 5)
			})
		})
	})

	Convey("Given no points", t, func() {
		So(timeseries.Align[model.SeriesKey](nil), ShouldBeEmpty)
	})
}

func TestClipToWindow(t *testing.T) {
	Convey("Given points before, inside and after a window", t, func() {
		w := model.Window{Start: hour(10), End: hour(20)}
		points := []model.CountPoint[model.SeriesKey]{
			point(total, 0, 1), point(total, 15, 2), point(total, 20, 3), point(total, 25, 4),
		}

		Convey("Then only points after the end are dropped", func() {
			out := timeseries.ClipToWindow(points, w)
			So(len(out), ShouldEqual, 3)
			So(out[2].Value, ShouldEqual, 3)
		})
	})
}

func TestResample(t *testing.T) {
	w := model.Window{Start: hour(0), End: hour(48)}

	Convey("Given a value that changes part way through a day", t, func() {
		samples := []model.Sample[model.SeriesKey]{
			sample(total, 0, 1),
			sample(total, 6, 2),
		}

		Convey("When resampling to daily buckets", func() {
			out, err := timeseries.Resample(samples, w, 24*time.Hour)
			So(err, ShouldBeNil)

			Convey("Then the first day is weighted by duration", func() {
				So(len(out), ShouldEqual, 2)
				So(*out[0].Value, ShouldAlmostEqual, 42.0/24.0, 1e-12)
			})

			Convey("Then the last value holds until the window end", func() {
				So(*out[1].Value, ShouldEqual, 2)
				So(out[1].Timestamp, ShouldEqual, hour(24))
			})
		})
	})

	Convey("Given a group that starts part way through the window", t, func() {
		samples := []model.Sample[model.SeriesKey]{
			sample(total, 0, 5),
			sample(used, 30, 4),
		}

		Convey("Then buckets before its first value are nil", func() {
			out, err := timeseries.Resample(samples, w, 24*time.Hour)
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 4)
			So(out[2].Key, ShouldEqual, used)
			So(out[2].Value, ShouldBeNil)
			So(*out[3].Value, ShouldEqual, 4)
		})
	})

	Convey("Given a value set before the window starts", t, func() {
		samples := []model.Sample[model.SeriesKey]{sample(total, -10, 7)}

		Convey("Then it carries into the window", func() {
			out, err := timeseries.Resample(samples, w, 12*time.Hour)
			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 4)
			for _, s := range out {
				So(*s.Value, ShouldEqual, 7)
			}
		})
	})

	Convey("Given invalid arguments", t, func() {
		_, err := timeseries.Resample[model.SeriesKey](nil, w, 0)
		So(errors.Is(err, timeseries.ErrInvalidBucket), ShouldBeTrue)

		_, err = timeseries.Resample[model.SeriesKey](nil, model.Window{Start: hour(5), End: hour(5)}, time.Hour)
		So(errors.Is(err, timeseries.ErrInvalidWindow), ShouldBeTrue)
	})
}

func TestParseBucket(t *testing.T) {
	Convey("Given bucket strings", t, func() {
		cases := map[string]time.Duration{
			"1d":  24 * time.Hour,
			"7d":  7 * 24 * time.Hour,
			"1w":  7 * 24 * time.Hour,
			"12h": 12 * time.Hour,
			"30m": 30 * time.Minute,
		}
		for in, want := range cases {
			got, err := timeseries.ParseBucket(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		for _, bad := range []string{"", "0d", "xd", "-1h", "soon"} {
			_, err := timeseries.ParseBucket(bad)
			So(errors.Is(err, timeseries.ErrInvalidBucket), ShouldBeTrue)
		}
	})
}
