// Package derived computes quantities defined as differences of base metrics.
package derived

import (
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/sweepline"
	"github.com/okian/spanline/internal/domain/types"
)

// Rule defines Metric = Minuend - Subtrahend.
type Rule struct {
	Metric     types.Metric
	Minuend    types.Metric
	Subtrahend types.Metric
}

// Rules are applied in order.
var Rules = []Rule{ //nolint:gochecknoglobals
	{Metric: types.MetricAvailable, Minuend: types.MetricReservable, Subtrahend: types.MetricCommitted},
	{Metric: types.MetricIdle, Minuend: types.MetricCommitted, Subtrahend: types.MetricOccupiedReservation},
}

type cell struct {
	ts       int64
	resource types.Resource
}

// Compute returns points plus one derived point per rule wherever both inputs have
// a value at the same timestamp and resource. Points should be aligned first.
// A rule whose inputs are missing is skipped.
func Compute(points []model.CountPoint[model.SeriesKey]) []model.CountPoint[model.SeriesKey] {
	wide := make(map[cell]map[types.Metric]float64)
	stamps := make(map[int64]time.Time)
	var order []cell
	for _, p := range points {
		c := cell{ts: p.Timestamp.UnixNano(), resource: p.Key.Resource}
		row, ok := wide[c]
		if !ok {
			row = make(map[types.Metric]float64)
			wide[c] = row
			order = append(order, c)
			stamps[c.ts] = p.Timestamp
		}
		row[p.Key.Metric] = p.Value
	}

	out := make([]model.CountPoint[model.SeriesKey], 0, len(points)+len(order)*len(Rules))
	out = append(out, points...)
	for _, c := range order {
		row := wide[c]
		for _, r := range Rules {
			a, okA := row[r.Minuend]
			b, okB := row[r.Subtrahend]
			if !okA || !okB {
				continue
			}
			out = append(out, model.CountPoint[model.SeriesKey]{
				Timestamp: stamps[c.ts],
				Key:       model.SeriesKey{Metric: r.Metric, Resource: c.resource},
				Value:     a - b,
			})
		}
	}
	sweepline.SortPoints(out)
	return out
}
