package legacy_test

import (
	"testing"
	"time"

	"github.com/okian/spanline/internal/domain/legacy"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func value(points []model.UsagePoint, day time.Time, m types.Metric) float64 {
	for _, p := range points {
		if p.Timestamp.Equal(day) && p.Metric == m {
			return p.Value
		}
	}
	return -1
}

func TestToUsage(t *testing.T) {
	d1 := time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	Convey("Given report rows for two node types on one day", t, func() {
		rows := []legacy.DailyHours{
			{Date: d2, NodeType: "compute_haswell", TotalHours: 240, MaintHours: 24, ReservedHours: 48, UsedHours: 96},
			{Date: d1, NodeType: "compute_haswell", TotalHours: 240, MaintHours: 0, ReservedHours: 24, UsedHours: 24},
			{Date: d1, NodeType: "gpu_p100", TotalHours: 48, MaintHours: 24, ReservedHours: 0, UsedHours: 0},
		}

		Convey("When converting", func() {
			out := legacy.ToUsage(rows, "tacc")

			Convey("Then node types are summed and hours become counts", func() {
				So(value(out, d1, types.MetricTotal), ShouldEqual, 12)
				So(value(out, d1, types.MetricReservable), ShouldEqual, 11)
				So(value(out, d1, types.MetricCommitted), ShouldEqual, 2)
				So(value(out, d1, types.MetricAvailable), ShouldEqual, 9)
				So(value(out, d1, types.MetricIdle), ShouldEqual, 1)
				So(value(out, d1, types.MetricOccupiedReservation), ShouldEqual, 1)
			})

			Convey("Then dates are ordered and tagged as legacy nodes", func() {
				So(len(out), ShouldEqual, 12)
				So(out[0].Timestamp, ShouldEqual, d1)
				So(out[len(out)-1].Timestamp, ShouldEqual, d2)
				for _, p := range out {
					So(p.CollectorType, ShouldEqual, types.CollectorLegacy)
					So(p.Resource, ShouldEqual, types.ResourceNodes)
					So(p.Site, ShouldEqual, "tacc")
				}
			})
		})
	})

	Convey("Given no rows", t, func() {
		So(legacy.ToUsage(nil, "tacc"), ShouldBeEmpty)
	})
}
