// Package model contains the records passed between pipeline stages.
package model

import (
	"time"

	"github.com/okian/spanline/internal/domain/types"
)

// Built-in interval columns.
const (
	ColEntityID = "entity_id"
	ColMetric   = "metric"
	ColResource = "resource"
	ColSource   = "source"
)

// Context columns carried by adapters.
const (
	ColHostname       = "hypervisor_hostname"
	ColHypervisorType = "hypervisor_type"
	ColHostID         = "blazar_host_id"
	ColReservationID  = "blazar_reservation_id"
	ColLeaseID        = "blazar_lease_id"
	ColAllocationID   = "blazar_allocation_id"
	ColInstanceID     = "instance_id"
	ColBookingType    = "booking_type"
)

var knownColumns = map[string]struct{}{ //nolint:gochecknoglobals
	ColEntityID:       {},
	ColMetric:         {},
	ColResource:       {},
	ColSource:         {},
	ColHostname:       {},
	ColHypervisorType: {},
	ColHostID:         {},
	ColReservationID:  {},
	ColLeaseID:        {},
	ColAllocationID:   {},
	ColInstanceID:     {},
	ColBookingType:    {},
}

// IsKnownColumn reports whether name addresses an Interval column.
func IsKnownColumn(name string) bool {
	_, ok := knownColumns[name]
	return ok
}

// Interval is a [Start, End) span during which an entity held a quantity.
// A nil End is open-ended.
type Interval struct {
	EntityID string
	Start    time.Time
	End      *time.Time
	Metric   types.Metric
	Resource types.Resource
	Value    float64
	Source   string            // adapter that produced the row
	Context  map[string]string // foreign keys; missing or empty means null
}

// Column returns the value of a built-in or context column and whether it is non-null.
func (iv Interval) Column(name string) (string, bool) {
	var v string
	switch name {
	case ColEntityID:
		v = iv.EntityID
	case ColMetric:
		v = string(iv.Metric)
	case ColResource:
		v = string(iv.Resource)
	case ColSource:
		v = iv.Source
	default:
		v = iv.Context[name]
	}
	return v, v != ""
}

// EndOr returns End, or fallback when the interval is open.
func (iv Interval) EndOr(fallback time.Time) time.Time {
	if iv.End == nil {
		return fallback
	}
	return *iv.End
}

// Overlaps reports whether iv intersects w.
func (iv Interval) Overlaps(w Window) bool {
	return iv.Start.Before(w.End) && (iv.End == nil || iv.End.After(w.Start))
}

// Touches reports whether iv intersects or meets w at either boundary.
func (iv Interval) Touches(w Window) bool {
	return !iv.Start.After(w.End) && (iv.End == nil || !iv.End.Before(w.Start))
}

// ClampedInterval is an Interval after hierarchy validation. Start and End hold the
// clamped bounds; a child that overlaps several parent eras yields one row per era.
type ClampedInterval struct {
	Interval
	Row           int // position of the child in the clamp input
	OriginalStart time.Time
	OriginalEnd   *time.Time
	Valid         bool
	CoerceAction  types.CoerceAction
}

// Ref returns a pointer to t.
func Ref(t time.Time) *time.Time { return &t }

// ValidateIntervals checks the Interval contract at a stage boundary.
func ValidateIntervals(stage string, ivs []Interval) error {
	for i, iv := range ivs {
		if iv.Start.IsZero() {
			return &SchemaViolation{Stage: stage, Missing: []string{"start"}, Row: i}
		}
		if iv.Metric == "" || iv.Resource == "" {
			return &SchemaViolation{Stage: stage, Missing: []string{ColMetric, ColResource}, Row: i}
		}
		if iv.End != nil && iv.End.Before(iv.Start) {
			return &SchemaViolation{Stage: stage, Reason: "end before start", Row: i}
		}
	}
	return nil
}
