// Package legacy converts the pre-aggregated node usage reports of the old
// collector into usage points. These reports already hold hours per day, so they
// bypass the interval pipeline.
package legacy

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

const hoursPerDay = 24

// DailyHours is one row of node_usage_report_cache.
type DailyHours struct {
	Date          time.Time
	NodeType      string
	MaintHours    float64
	ReservedHours float64
	UsedHours     float64
	IdleHours     float64
	TotalHours    float64
}

// ToUsage sums report rows per date across node types and converts the hours
// into average node counts for that day.
//
//	reservable = total - maint
//	committed  = reserved + used
//	available  = reservable - committed
//	idle       = reserved
//	occupied   = used
func ToUsage(rows []DailyHours, site string) []model.UsagePoint {
	type sums struct{ maint, reserved, used, total float64 }
	byDate := make(map[int64]*sums)
	dates := make(map[int64]time.Time)
	for _, r := range rows {
		k := r.Date.UnixNano()
		s, ok := byDate[k]
		if !ok {
			s = &sums{}
			byDate[k] = s
			dates[k] = r.Date
		}
		s.maint += r.MaintHours
		s.reserved += r.ReservedHours
		s.used += r.UsedHours
		s.total += r.TotalHours
	}

	keys := make([]int64, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]model.UsagePoint, 0, len(keys)*6)
	for _, k := range keys {
		s := byDate[k]
		reservable := s.total - s.maint
		committed := s.reserved + s.used
		values := []struct {
			metric types.Metric
			hours  float64
		}{
			{types.MetricTotal, s.total},
			{types.MetricReservable, reservable},
			{types.MetricCommitted, committed},
			{types.MetricOccupiedReservation, s.used},
			{types.MetricAvailable, reservable - committed},
			{types.MetricIdle, s.reserved},
		}
		for _, v := range values {
			out = append(out, model.UsagePoint{
				Timestamp:     dates[k],
				Metric:        v.metric,
				Resource:      types.ResourceNodes,
				Value:         v.hours / hoursPerDay,
				Site:          site,
				CollectorType: types.CollectorLegacy,
			})
		}
	}
	return out
}
