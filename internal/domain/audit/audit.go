// Package audit checks that every raw row is accounted for after validation and
// summarises the rows that were rejected. Nothing here aborts processing.
package audit

import (
	"maps"
	"slices"
	"strconv"

	"github.com/okian/spanline/internal/domain/dedupe"
	"github.com/okian/spanline/internal/domain/model"
)

// Counts holds row counts per source.
type Counts map[string]int

// SourceCount is the row accounting of one source.
type SourceCount struct {
	Source   string
	Raw      int
	Valid    int
	Rejected int
}

// Mismatch is Raw - (Valid + Rejected).
func (c SourceCount) Mismatch() int { return c.Raw - c.Valid - c.Rejected }

// Holds reports whether every raw row was accounted for.
func (c SourceCount) Holds() bool { return c.Mismatch() == 0 }

// RowReport is the result of a row invariant check.
type RowReport struct {
	Sources    []SourceCount
	Violations []SourceCount
}

// OK reports whether the invariant held for every source.
func (r RowReport) OK() bool { return len(r.Violations) == 0 }

// Totals sums the counts over all sources.
func (r RowReport) Totals() SourceCount {
	var t SourceCount
	for _, s := range r.Sources {
		t.Raw += s.Raw
		t.Valid += s.Valid
		t.Rejected += s.Rejected
	}
	return t
}

// CheckRowInvariant verifies raw == valid + rejected per source. A source missing
// from a map counts as zero.
func CheckRowInvariant(raw, valid, rejected Counts) RowReport {
	sources := make(map[string]struct{})
	for _, m := range []Counts{raw, valid, rejected} {
		for s := range m {
			sources[s] = struct{}{}
		}
	}

	var r RowReport
	for _, s := range slices.Sorted(maps.Keys(sources)) {
		c := SourceCount{Source: s, Raw: raw[s], Valid: valid[s], Rejected: rejected[s]}
		r.Sources = append(r.Sources, c)
		if !c.Holds() {
			r.Violations = append(r.Violations, c)
		}
	}
	return r
}

// CountRows counts input rows per source and the distinct input rows that came
// out valid or rejected. A child that fanned out over several eras counts once.
func CountRows(inputs []model.Interval, rows []model.ClampedInterval) (raw, valid, rejected Counts) {
	raw = make(Counts)
	for _, iv := range inputs {
		raw[iv.Source]++
	}

	source := func(r model.ClampedInterval) string { return r.Source }
	child := func(r model.ClampedInterval) string {
		return dedupe.Key(string(r.Metric), strconv.Itoa(r.Row))
	}

	var ok, bad []model.ClampedInterval
	for _, r := range rows {
		if r.Valid {
			ok = append(ok, r)
		} else {
			bad = append(bad, r)
		}
	}
	return raw, dedupe.CountDistinct(ok, source, child), dedupe.CountDistinct(bad, source, child)
}
