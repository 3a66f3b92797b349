package timeseries

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/spanline/internal/domain/model"
)

type accum struct {
	num decimal.Decimal
	den decimal.Decimal
}

// Resample partitions the window into fixed buckets and returns, per group and
// bucket, the duration weighted mean Σ(v·overlap)/Σ(overlap). A value holds from
// its timestamp until the group's next timestamp, or until window end when it is
// the last one. Values set before the window start carry into the first bucket.
// Buckets with no contributing duration are nil. Every group gets every bucket.
func Resample[K model.Key[K]](samples []model.Sample[K], w model.Window, bucket time.Duration) ([]model.Sample[K], error) {
	if bucket <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBucket, bucket)
	}
	if !w.Start.Before(w.End) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidWindow, w.Start, w.End)
	}
	n := int((w.End.Sub(w.Start) + bucket - 1) / bucket)

	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b model.Sample[K]) int {
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	var out []model.Sample[K]
	for lo := 0; lo < len(sorted); {
		hi := lo
		for hi < len(sorted) && sorted[hi].Key == sorted[lo].Key {
			hi++
		}
		out = append(out, resampleGroup(sorted[lo:hi], w, bucket, n)...)
		lo = hi
	}
	return out, nil
}

// resampleGroup handles one group's samples sorted by timestamp.
func resampleGroup[K model.Key[K]](group []model.Sample[K], w model.Window, bucket time.Duration, n int) []model.Sample[K] {
	acc := make([]accum, n)
	for i, s := range group {
		if s.Value == nil {
			continue
		}
		from := s.Timestamp
		until := w.End
		if i+1 < len(group) && group[i+1].Timestamp.Before(until) {
			until = group[i+1].Timestamp
		}
		if from.Before(w.Start) {
			from = w.Start
		}
		if !from.Before(until) {
			continue
		}
		v := decimal.NewFromFloat(*s.Value)
		for b := int(from.Sub(w.Start) / bucket); b < n; b++ {
			bStart := w.Start.Add(time.Duration(b) * bucket)
			if !bStart.Before(until) {
				break
			}
			bEnd := bStart.Add(bucket)
			lo, hi := maxTime(from, bStart), minTime(until, bEnd)
			if !lo.Before(hi) {
				continue
			}
			d := decimal.NewFromInt(int64(hi.Sub(lo)))
			acc[b].num = acc[b].num.Add(v.Mul(d))
			acc[b].den = acc[b].den.Add(d)
		}
	}

	key := group[0].Key
	out := make([]model.Sample[K], n)
	for b := range acc {
		out[b] = model.Sample[K]{Timestamp: w.Start.Add(time.Duration(b) * bucket), Key: key}
		if acc[b].den.IsPositive() {
			f, _ := acc[b].num.Div(acc[b].den).Float64()
			out[b].Value = &f
		}
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
