// Package timeseries aligns and resamples step functions.
package timeseries

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/sweepline"
)

// Align forward-fills every group across the union of timestamps seen in any group.
// Positions before a group's first observation are nil.
func Align[K model.Key[K]](points []model.CountPoint[K]) []model.Sample[K] {
	if len(points) == 0 {
		return nil
	}
	sorted := slices.Clone(points)
	sweepline.SortPoints(sorted)

	stamps := unionTimestamps(sorted)
	keys := groupKeys(sorted)

	out := make([]model.Sample[K], 0, len(stamps)*len(keys))
	i := 0
	for _, k := range keys {
		var last *float64
		for _, ts := range stamps {
			for i < len(sorted) && sorted[i].Key == k && !sorted[i].Timestamp.After(ts) {
				last = model.Float(sorted[i].Value)
				i++
			}
			out = append(out, model.Sample[K]{Timestamp: ts, Key: k, Value: last})
		}
	}
	return out
}

// FillNull replaces nil sample values with v.
func FillNull[K model.Key[K]](samples []model.Sample[K], v float64) []model.Sample[K] {
	out := make([]model.Sample[K], len(samples))
	for i, s := range samples {
		if s.Value == nil {
			s.Value = model.Float(v)
		}
		out[i] = s
	}
	return out
}

// Points drops nil samples and returns the rest as count points.
func Points[K model.Key[K]](samples []model.Sample[K]) []model.CountPoint[K] {
	out := make([]model.CountPoint[K], 0, len(samples))
	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		out = append(out, model.CountPoint[K]{Timestamp: s.Timestamp, Key: s.Key, Value: *s.Value})
	}
	return out
}

// ClipToWindow drops points after the window end. Earlier points are kept since
// they carry the value entering the window.
func ClipToWindow[K model.Key[K]](points []model.CountPoint[K], w model.Window) []model.CountPoint[K] {
	out := make([]model.CountPoint[K], 0, len(points))
	for _, p := range points {
		if p.Timestamp.After(w.End) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func unionTimestamps[K model.Key[K]](points []model.CountPoint[K]) []time.Time {
	stamps := make([]time.Time, 0, len(points))
	for _, p := range points {
		stamps = append(stamps, p.Timestamp)
	}
	slices.SortFunc(stamps, time.Time.Compare)
	return slices.CompactFunc(stamps, time.Time.Equal)
}

// groupKeys returns distinct keys of points already sorted by key.
func groupKeys[K model.Key[K]](points []model.CountPoint[K]) []K {
	var keys []K
	for i, p := range points {
		if i == 0 || p.Key != points[i-1].Key {
			keys = append(keys, p.Key)
		}
	}
	return keys
}
