package derived_test

import (
	"testing"
	"time"

	"github.com/okian/spanline/internal/domain/derived"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

func pt(m types.Metric, v float64) model.CountPoint[model.SeriesKey] {
	return model.CountPoint[model.SeriesKey]{
		Timestamp: t0,
		Key:       model.SeriesKey{Metric: m, Resource: types.ResourceNodes},
		Value:     v,
	}
}

func find(points []model.CountPoint[model.SeriesKey], m types.Metric) (float64, bool) {
	for _, p := range points {
		if p.Key.Metric == m {
			return p.Value, true
		}
	}
	return 0, false
}

func TestCompute(t *testing.T) {
	Convey("Given reservable 10 and committed 3", t, func() {
		out := derived.Compute([]model.CountPoint[model.SeriesKey]{
			pt(types.MetricReservable, 10),
			pt(types.MetricCommitted, 3),
		})

		Convey("Then available is 7", func() {
			v, ok := find(out, types.MetricAvailable)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 7)
		})

		Convey("Then idle is skipped because occupancy is missing", func() {
			_, ok := find(out, types.MetricIdle)
			So(ok, ShouldBeFalse)
			So(len(out), ShouldEqual, 3)
		})
	})

	Convey("Given committed 10 and occupied 4", t, func() {
		out := derived.Compute([]model.CountPoint[model.SeriesKey]{
			pt(types.MetricCommitted, 10),
			pt(types.MetricOccupiedReservation, 4),
		})

		Convey("Then idle is 6", func() {
			v, ok := find(out, types.MetricIdle)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 6)
		})
	})

	Convey("Given only total", t, func() {
		out := derived.Compute([]model.CountPoint[model.SeriesKey]{pt(types.MetricTotal, 5)})

		Convey("Then nothing is derived and nothing fails", func() {
			So(len(out), ShouldEqual, 1)
		})
	})

	Convey("Given inputs on different resources", t, func() {
		cpu := pt(types.MetricCommitted, 3)
		cpu.Key.Resource = types.ResourceVCPUs
		out := derived.Compute([]model.CountPoint[model.SeriesKey]{pt(types.MetricReservable, 10), cpu})

		Convey("Then they are not combined", func() {
			_, ok := find(out, types.MetricAvailable)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestCompatHours(t *testing.T) {
	Convey("Given one day of node usage", t, func() {
		up := func(m types.Metric, r types.Resource, v float64) model.UsagePoint {
			return model.UsagePoint{Timestamp: t0, Metric: m, Resource: r, Value: v, Site: "uc"}
		}
		rows := derived.CompatHours([]model.UsagePoint{
			up(types.MetricTotal, types.ResourceNodes, 10),
			up(types.MetricReservable, types.ResourceNodes, 8),
			up(types.MetricAvailable, types.ResourceNodes, 3),
			up(types.MetricIdle, types.ResourceNodes, 1),
			up(types.MetricOccupiedReservation, types.ResourceNodes, 4),
			up(types.MetricTotal, types.ResourceVCPUs, 480),
		})

		Convey("Then states are node-hours that partition total", func() {
			So(len(rows), ShouldEqual, 1)
			r := rows[0]
			So(r.Maintenance, ShouldEqual, 48)
			So(r.Available, ShouldEqual, 72)
			So(r.IdleReservation, ShouldEqual, 24)
			So(r.Active, ShouldEqual, 96)
			So(r.Total, ShouldEqual, 240)
			So(r.Maintenance+r.Available+r.IdleReservation+r.Active, ShouldEqual, r.Total)
			So(r.NodeType, ShouldEqual, "unknown")
		})
	})
}
