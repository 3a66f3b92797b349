package model

import (
	"cmp"
	"time"

	"github.com/okian/spanline/internal/domain/types"
)

// Key is a group key usable by the generic series stages.
type Key[K any] interface {
	comparable
	Compare(other K) int
}

// SeriesKey groups counts by metric and resource.
type SeriesKey struct {
	Metric   types.Metric
	Resource types.Resource
}

func (k SeriesKey) Compare(o SeriesKey) int {
	if c := cmp.Compare(k.Metric.Rank(), o.Metric.Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Metric, o.Metric); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Resource.Rank(), o.Resource.Rank()); c != 0 {
		return c
	}
	return cmp.Compare(k.Resource, o.Resource)
}

// EntityKey groups facts and segments by entity and metric.
type EntityKey struct {
	EntityID string
	Metric   types.Metric
}

func (k EntityKey) Compare(o EntityKey) int {
	if c := cmp.Compare(k.EntityID, o.EntityID); c != 0 {
		return c
	}
	return cmp.Compare(k.Metric, o.Metric)
}

// Span is the sweep-line input: Value is held over [Start, End).
type Span[K Key[K]] struct {
	Key   K
	Start time.Time
	End   *time.Time
	Value float64
}

// DeltaEvent is a signed change at an instant.
type DeltaEvent[K Key[K]] struct {
	Timestamp time.Time
	Key       K
	Change    float64
}

// CountPoint is one step of a step function. Value holds until the next point
// of the same group.
type CountPoint[K Key[K]] struct {
	Timestamp time.Time
	Key       K
	Value     float64
}

// Sample is a step value that may be null.
type Sample[K Key[K]] struct {
	Timestamp time.Time
	Key       K
	Value     *float64
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// UsagePoint is one row of the output table.
type UsagePoint struct {
	Timestamp     time.Time
	Metric        types.Metric
	Resource      types.Resource
	Value         float64
	Site          string
	CollectorType types.CollectorType
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
