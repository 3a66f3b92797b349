package audit

import (
	"cmp"
	"maps"
	"slices"
	"strconv"

	"github.com/okian/spanline/internal/domain/dedupe"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// HoursRow is the span-hours of one source.
type HoursRow struct {
	Source   string
	Valid    float64
	Rejected float64
}

// Total is Valid + Rejected.
func (h HoursRow) Total() float64 { return h.Valid + h.Rejected }

// ReportHours sums span-hours per source for valid and rejected rows. Open ends
// are capped at the window end; spans starting after it count zero.
func ReportHours(rows []model.ClampedInterval, w model.Window) []HoursRow {
	bySource := make(map[string]*HoursRow)
	for _, r := range rows {
		h, ok := bySource[r.Source]
		if !ok {
			h = &HoursRow{Source: r.Source}
			bySource[r.Source] = h
		}
		hours := r.EndOr(w.End).Sub(r.Start).Hours()
		if hours < 0 {
			hours = 0
		}
		if r.Valid {
			h.Valid += hours
		} else {
			h.Rejected += hours
		}
	}

	out := make([]HoursRow, 0, len(bySource))
	for _, s := range slices.Sorted(maps.Keys(bySource)) {
		out = append(out, *bySource[s])
	}
	return out
}

// SummaryRow counts rejected rows sharing a start year, source and status.
type SummaryRow struct {
	Year    int
	Source  string
	Status  types.CoerceAction
	Rows    int
	Percent float64 // of all rows of the source inside the window
}

// Summary lists rejected rows inside a window.
type Summary struct {
	Rejected int
	Total    int
	Rows     []SummaryRow
}

// Summarize groups rejected rows that start inside the window by year, source and
// status. Percentages are relative to the distinct rows of the same source that
// start inside the window. Rows are ordered newest year first, then by share.
func Summarize(rows []model.ClampedInterval, w model.Window) Summary {
	var inWindow []model.ClampedInterval
	for _, r := range rows {
		if w.Contains(r.OriginalStart) {
			inWindow = append(inWindow, r)
		}
	}

	totals := dedupe.CountDistinct(inWindow,
		func(r model.ClampedInterval) string { return r.Source },
		func(r model.ClampedInterval) string { return dedupe.Key(string(r.Metric), strconv.Itoa(r.Row)) })

	type group struct {
		year   int
		source string
		status types.CoerceAction
	}
	counts := make(map[group]int)
	var s Summary
	for _, r := range inWindow {
		if r.Valid {
			continue
		}
		counts[group{year: r.OriginalStart.Year(), source: r.Source, status: r.CoerceAction}]++
		s.Rejected++
	}
	for _, n := range totals {
		s.Total += n
	}

	for g, n := range counts {
		pct := 0.0
		if t := totals[g.source]; t > 0 {
			pct = float64(n) / float64(t) * 100
		}
		s.Rows = append(s.Rows, SummaryRow{Year: g.year, Source: g.source, Status: g.status, Rows: n, Percent: pct})
	}
	slices.SortFunc(s.Rows, func(a, b SummaryRow) int {
		if c := cmp.Compare(b.Year, a.Year); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Percent, a.Percent); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Status, b.Status)
	})
	return s
}
