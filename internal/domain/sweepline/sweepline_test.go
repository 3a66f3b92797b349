package sweepline_test

import (
	"testing"
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/sweepline"
	"github.com/okian/spanline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	nodes = model.SeriesKey{Metric: types.MetricTotal, Resource: types.ResourceNodes}
	vcpus = model.SeriesKey{Metric: types.MetricTotal, Resource: types.ResourceVCPUs}
)

func at(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

func span(k model.SeriesKey, start int, end *int, v float64) model.Span[model.SeriesKey] {
	s := model.Span[model.SeriesKey]{Key: k, Start: at(start), Value: v}
	if end != nil {
		s.End = model.Ref(at(*end))
	}
	return s
}

func end(n int) *int { return &n }

func TestIntervalsToDeltas(t *testing.T) {
	Convey("Given closed and open spans", t, func() {
		spans := []model.Span[model.SeriesKey]{
			span(nodes, 1, end(2), 1),
			span(nodes, 3, nil, 2),
		}

		Convey("When converting to deltas", func() {
			deltas := sweepline.IntervalsToDeltas(spans)

			Convey("Then an open span emits no closing delta", func() {
				So(len(deltas), ShouldEqual, 3)
				So(deltas[0].Change, ShouldEqual, 1)
				So(deltas[1].Change, ShouldEqual, -1)
				So(deltas[2].Change, ShouldEqual, 2)
			})
		})
	})
}

func TestCounts(t *testing.T) {
	Convey("Given a single day-long interval", t, func() {
		counts := sweepline.Counts([]model.Span[model.SeriesKey]{span(nodes, 1, end(2), 1)})

		Convey("Then the count rises to one and falls back to zero", func() {
			So(len(counts), ShouldEqual, 2)
			So(counts[0].Timestamp, ShouldEqual, at(1))
			So(counts[0].Value, ShouldEqual, 1)
			So(counts[1].Timestamp, ShouldEqual, at(2))
			So(counts[1].Value, ShouldEqual, 0)
		})
	})

	Convey("Given two overlapping intervals [1,3) and [2,4)", t, func() {
		counts := sweepline.Counts([]model.Span[model.SeriesKey]{
			span(nodes, 1, end(3), 1),
			span(nodes, 2, end(4), 1),
		})

		Convey("Then the step function is 1, 2, 1, 0", func() {
			So(len(counts), ShouldEqual, 4)
			want := []float64{1, 2, 1, 0}
			for i, w := range want {
				So(counts[i].Timestamp, ShouldEqual, at(i+1))
				So(counts[i].Value, ShouldEqual, w)
			}
		})
	})

	Convey("Given simultaneous deltas in one group", t, func() {
		counts := sweepline.Counts([]model.Span[model.SeriesKey]{
			span(nodes, 1, end(2), 1),
			span(nodes, 2, end(3), 1),
		})

		Convey("Then they are summed into one point", func() {
			So(len(counts), ShouldEqual, 3)
			So(counts[1].Timestamp, ShouldEqual, at(2))
			So(counts[1].Value, ShouldEqual, 1)
		})
	})

	Convey("Given spans in several groups in shuffled order", t, func() {
		a := []model.Span[model.SeriesKey]{
			span(vcpus, 2, end(5), 48),
			span(nodes, 1, nil, 1),
			span(vcpus, 1, end(3), 24),
			span(nodes, 2, end(4), 1),
		}
		b := []model.Span[model.SeriesKey]{a[3], a[2], a[1], a[0]}

		Convey("Then the result is independent of input order", func() {
			ca := sweepline.Counts(a)
			cb := sweepline.Counts(b)
			So(ca, ShouldResemble, cb)
		})

		Convey("Then groups integrate independently and never go negative", func() {
			counts := sweepline.Counts(a)
			So(counts[0].Key, ShouldEqual, nodes)
			for _, c := range counts {
				So(c.Value, ShouldBeGreaterThanOrEqualTo, 0)
			}
			last := counts[len(counts)-1]
			So(last.Key, ShouldEqual, vcpus)
			So(last.Value, ShouldEqual, 0)
		})
	})
}
