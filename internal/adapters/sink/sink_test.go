package sink_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spanline/internal/adapters/sink"
	"github.com/okian/spanline/internal/domain/derived"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
	logging "github.com/okian/spanline/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logging.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestWriter(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a writer over a temporary directory", t, func() {
		dir := filepath.Join(t.TempDir(), "out")
		w, err := sink.NewWriter(dir)
		So(err, ShouldBeNil)
		defer w.Close()

		db, err := sql.Open("duckdb", "")
		So(err, ShouldBeNil)
		defer db.Close()

		Convey("When usage points are written", func() {
			points := []model.UsagePoint{
				{Timestamp: ts.Add(time.Hour), Metric: types.MetricTotal, Resource: types.ResourceNodes, Value: 3, Site: "uc", CollectorType: types.CollectorCurrent},
				{Timestamp: ts, Metric: types.MetricTotal, Resource: types.ResourceNodes, Value: 2, Site: "uc", CollectorType: types.CollectorCurrent},
				{Timestamp: ts, Metric: types.MetricAvailable, Resource: types.ResourceNodes, Value: 1.5, Site: "uc", CollectorType: types.CollectorLegacy},
			}
			path, err := w.WriteUsage(ctx, "uc", points)
			So(err, ShouldBeNil)

			Convey("Then the parquet file holds every point ordered by series and time", func() {
				So(path, ShouldEqual, filepath.Join(dir, "uc"+sink.UsageSuffix))
				rows, err := db.Query("SELECT metric, value, collector_type FROM read_parquet('" + path + "')")
				So(err, ShouldBeNil)
				defer rows.Close()

				type row struct {
					metric, collector string
					value             float64
				}
				var got []row
				for rows.Next() {
					var r row
					So(rows.Scan(&r.metric, &r.value, &r.collector), ShouldBeNil)
					got = append(got, r)
				}
				So(got, ShouldResemble, []row{
					{"available", "legacy", 1.5},
					{"total", "current", 2},
					{"total", "current", 3},
				})
			})

			Convey("Then writing again replaces the file", func() {
				_, err := w.WriteUsage(ctx, "uc", points[:1])
				So(err, ShouldBeNil)
				var n int
				So(db.QueryRow("SELECT count(*) FROM read_parquet('"+path+"')").Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When compat rows are written", func() {
			rows := []derived.CompatRow{{Date: ts, Site: "uc", NodeType: "unknown", Maintenance: 24, Available: 48, IdleReservation: 0, Active: 24, Total: 96}}
			path, err := w.WriteCompat(ctx, "uc", rows)

			Convey("Then the compat file exists with the partition columns", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(path)
				So(statErr, ShouldBeNil)
				var total float64
				So(db.QueryRow("SELECT total FROM read_parquet('"+path+"')").Scan(&total), ShouldBeNil)
				So(total, ShouldEqual, 96)
			})
		})
	})

	Convey("Given an output directory that cannot be created", t, func() {
		file := filepath.Join(t.TempDir(), "file")
		So(os.WriteFile(file, []byte("x"), 0o600), ShouldBeNil)

		_, err := sink.NewWriter(filepath.Join(file, "out"))
		So(errors.Is(err, sink.ErrWrite), ShouldBeTrue)
	})
}
