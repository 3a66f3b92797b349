// Package sweepline converts spans into step-function counts.
//
// A span contributes +Value at Start and -Value at End. Deltas that share a
// timestamp and key are summed before integration, so the result does not
// depend on input order.
package sweepline

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/model"
)

// IntervalsToDeltas emits +Value at each span start and -Value at each non-nil end.
// An open span never closes.
func IntervalsToDeltas[K model.Key[K]](spans []model.Span[K]) []model.DeltaEvent[K] {
	out := make([]model.DeltaEvent[K], 0, 2*len(spans))
	for _, s := range spans {
		out = append(out, model.DeltaEvent[K]{Timestamp: s.Start, Key: s.Key, Change: s.Value})
		if s.End != nil {
			out = append(out, model.DeltaEvent[K]{Timestamp: *s.End, Key: s.Key, Change: -s.Value})
		}
	}
	return out
}

type bucket[K model.Key[K]] struct {
	key K
	ts  int64
}

// DeltasToCounts sums deltas per (key, timestamp), sorts by key then timestamp
// and takes a running sum per key.
func DeltasToCounts[K model.Key[K]](deltas []model.DeltaEvent[K]) []model.CountPoint[K] {
	sums := make(map[bucket[K]]float64, len(deltas))
	stamps := make(map[bucket[K]]time.Time, len(deltas))
	for _, d := range deltas {
		b := bucket[K]{key: d.Key, ts: d.Timestamp.UnixNano()}
		if _, ok := stamps[b]; !ok {
			stamps[b] = d.Timestamp
		}
		sums[b] += d.Change
	}

	points := make([]model.CountPoint[K], 0, len(sums))
	for b, v := range sums {
		points = append(points, model.CountPoint[K]{Timestamp: stamps[b], Key: b.key, Value: v})
	}
	SortPoints(points)

	var (
		running float64
		prev    K
	)
	for i := range points {
		if i == 0 || points[i].Key != prev {
			running = 0
			prev = points[i].Key
		}
		running += points[i].Value
		points[i].Value = running
	}
	return points
}

// Counts runs IntervalsToDeltas then DeltasToCounts.
func Counts[K model.Key[K]](spans []model.Span[K]) []model.CountPoint[K] {
	return DeltasToCounts(IntervalsToDeltas(spans))
}

// SortPoints orders points by key then timestamp.
func SortPoints[K model.Key[K]](points []model.CountPoint[K]) {
	slices.SortStableFunc(points, func(a, b model.CountPoint[K]) int {
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})
}
