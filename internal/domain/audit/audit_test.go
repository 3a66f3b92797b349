package audit_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/okian/spanline/internal/domain/audit"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCheckRowInvariant(t *testing.T) {
	Convey("Given 100 raw rows split into 80 valid and 20 rejected", t, func() {
		r := audit.CheckRowInvariant(
			audit.Counts{"nova": 100},
			audit.Counts{"nova": 80},
			audit.Counts{"nova": 20},
		)

		Convey("Then the invariant holds", func() {
			So(r.OK(), ShouldBeTrue)
			So(r.Sources[0].Mismatch(), ShouldEqual, 0)
		})
	})

	Convey("Given 100 raw rows but only 75 valid and 20 rejected", t, func() {
		r := audit.CheckRowInvariant(
			audit.Counts{"nova": 100, "blazar": 4},
			audit.Counts{"nova": 75, "blazar": 4},
			audit.Counts{"nova": 20},
		)

		Convey("Then the source is flagged with a mismatch of 5", func() {
			So(r.OK(), ShouldBeFalse)
			So(len(r.Violations), ShouldEqual, 1)
			So(r.Violations[0].Source, ShouldEqual, "nova")
			So(r.Violations[0].Mismatch(), ShouldEqual, 5)
		})

		Convey("Then sources are reported in name order with totals", func() {
			So(r.Sources[0].Source, ShouldEqual, "blazar")
			So(r.Totals().Raw, ShouldEqual, 104)
		})

		Convey("Then the report renders", func() {
			var buf bytes.Buffer
			So(audit.RenderRows(&buf, "uc", r), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "VIOLATED")
			So(buf.String(), ShouldContainSubstring, "nova")
		})
	})
}

var jan = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func clamped(row int, valid bool, action types.CoerceAction, start, end time.Time) model.ClampedInterval {
	return model.ClampedInterval{
		Interval: model.Interval{
			Start:    start,
			End:      model.Ref(end),
			Metric:   types.MetricCommitted,
			Resource: types.ResourceNodes,
			Source:   "blazar_allocation",
		},
		Row:           row,
		OriginalStart: start,
		OriginalEnd:   model.Ref(end),
		Valid:         valid,
		CoerceAction:  action,
	}
}

func TestCountRows(t *testing.T) {
	Convey("Given a child that fanned out and a rejected child", t, func() {
		inputs := []model.Interval{
			{Source: "blazar_allocation"},
			{Source: "blazar_allocation"},
		}
		rows := []model.ClampedInterval{
			clamped(0, true, types.CoerceClipped, jan, jan.Add(24*time.Hour)),
			clamped(0, true, types.CoerceClipped, jan.Add(48*time.Hour), jan.Add(72*time.Hour)),
			clamped(1, false, types.CoerceOrphan, jan, jan.Add(time.Hour)),
		}

		Convey("Then each input row is counted once", func() {
			raw, valid, rejected := audit.CountRows(inputs, rows)
			So(raw["blazar_allocation"], ShouldEqual, 2)
			So(valid["blazar_allocation"], ShouldEqual, 1)
			So(rejected["blazar_allocation"], ShouldEqual, 1)
			So(audit.CheckRowInvariant(raw, valid, rejected).OK(), ShouldBeTrue)
		})
	})
}

func TestReportHours(t *testing.T) {
	Convey("Given valid, rejected and open rows", t, func() {
		w := model.Window{Start: jan, End: jan.Add(10 * time.Hour)}
		open := clamped(2, true, types.CoerceNone, jan.Add(8*time.Hour), jan)
		open.End = nil
		rows := []model.ClampedInterval{
			clamped(0, true, types.CoerceNone, jan, jan.Add(3*time.Hour)),
			clamped(1, false, types.CoerceOrphan, jan, jan.Add(time.Hour)),
			open,
		}

		Convey("Then hours are summed with open ends capped at the window", func() {
			out := audit.ReportHours(rows, w)
			So(len(out), ShouldEqual, 1)
			So(out[0].Valid, ShouldEqual, 5)
			So(out[0].Rejected, ShouldEqual, 1)
			So(out[0].Total(), ShouldEqual, 6)

			var buf bytes.Buffer
			So(audit.RenderHours(&buf, "uc", out), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "span-hours")
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given rejected rows across two years", t, func() {
		w := model.Window{Start: jan.AddDate(-1, 0, 0), End: jan.AddDate(1, 0, 0)}
		prev := jan.AddDate(0, -6, 0)
		rows := []model.ClampedInterval{
			clamped(0, true, types.CoerceNone, jan, jan.Add(time.Hour)),
			clamped(1, false, types.CoerceOrphan, jan, jan.Add(time.Hour)),
			clamped(2, false, types.CoerceNullKey, prev, prev.Add(time.Hour)),
			clamped(3, false, types.CoerceOrphan, jan.AddDate(2, 0, 0), jan.AddDate(2, 0, 1)),
		}

		s := audit.Summarize(rows, w)

		Convey("Then only rows starting in the window are counted", func() {
			So(s.Rejected, ShouldEqual, 2)
			So(s.Total, ShouldEqual, 3)
		})

		Convey("Then the newest year comes first with its share of the source", func() {
			So(len(s.Rows), ShouldEqual, 2)
			So(s.Rows[0].Year, ShouldEqual, 2024)
			So(s.Rows[0].Status, ShouldEqual, types.CoerceOrphan)
			So(s.Rows[0].Percent, ShouldAlmostEqual, 100.0/3.0, 1e-9)
			So(s.Rows[1].Year, ShouldEqual, 2023)
		})

		Convey("Then the summary renders", func() {
			var buf bytes.Buffer
			So(audit.RenderSummary(&buf, "uc", s), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "2 rejected / 3 total")
		})
	})

	Convey("Given no rejected rows", t, func() {
		var buf bytes.Buffer
		So(audit.RenderSummary(&buf, "uc", audit.Summary{}), ShouldBeNil)
		So(buf.String(), ShouldContainSubstring, "no rejected rows")
	})
}
