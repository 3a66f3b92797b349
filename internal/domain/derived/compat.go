package derived

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// HoursPerDay converts daily node counts into node-hours.
const HoursPerDay = 24

// CompatRow is one day of node-hours split into states that partition total:
// total = maintenance + available + idle_reservation + active.
type CompatRow struct {
	Date            time.Time
	Site            string
	NodeType        string
	Maintenance     float64
	Available       float64
	IdleReservation float64
	Active          float64
	Total           float64
}

// CompatHours converts daily node usage points into the legacy report layout.
// Points should be resampled to one-day buckets. Only the nodes resource is
// used; a missing metric counts as zero.
func CompatHours(points []model.UsagePoint) []CompatRow {
	type day struct {
		ts   int64
		site string
	}
	byDay := make(map[day]map[types.Metric]float64)
	dates := make(map[day]time.Time)
	var order []day
	for _, p := range points {
		if p.Resource != types.ResourceNodes {
			continue
		}
		d := day{ts: p.Timestamp.UnixNano(), site: p.Site}
		m, ok := byDay[d]
		if !ok {
			m = make(map[types.Metric]float64)
			byDay[d] = m
			dates[d] = p.Timestamp
			order = append(order, d)
		}
		m[p.Metric] += p.Value
	}

	out := make([]CompatRow, 0, len(order))
	for _, d := range order {
		m := byDay[d]
		out = append(out, CompatRow{
			Date:            dates[d],
			Site:            d.site,
			NodeType:        "unknown",
			Maintenance:     (m[types.MetricTotal] - m[types.MetricReservable]) * HoursPerDay,
			Available:       m[types.MetricAvailable] * HoursPerDay,
			IdleReservation: m[types.MetricIdle] * HoursPerDay,
			Active:          m[types.MetricOccupiedReservation] * HoursPerDay,
			Total:           m[types.MetricTotal] * HoursPerDay,
		})
	}
	slices.SortStableFunc(out, func(a, b CompatRow) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Site < b.Site {
			return -1
		}
		if a.Site > b.Site {
			return 1
		}
		return 0
	})
	return out
}
