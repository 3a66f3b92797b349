// Package hierarchy enforces occupied ⊆ committed ⊆ reservable ⊆ total by
// clamping each tier against the valid fragments of the tier above it.
package hierarchy

import (
	"fmt"
	"slices"

	"github.com/okian/spanline/internal/domain/clamp"
	"github.com/okian/spanline/internal/domain/dedupe"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// Join keys per tier.
//
//nolint:gochecknoglobals
var (
	ReservableKeys = []string{model.ColHostname, model.ColResource}
	CommittedKeys  = []string{model.ColHostID, model.ColResource}
	OccupiedKeys   = []string{model.ColReservationID, model.ColHostname, model.ColResource}
)

// RequireReservationBooking requires a committed parent only for instances booked
// through a reservation. On-demand instances have no containing tier.
func RequireReservationBooking(iv model.Interval) bool {
	return iv.Context[model.ColBookingType] == string(types.BookingReservation)
}

// Validator applies the clamp along the metric chain.
type Validator struct {
	reservable clamp.Policy
	committed  clamp.Policy
	occupied   clamp.Policy
}

// New creates a Validator with the default per-tier policies.
func New(opts ...Option) *Validator {
	v := &Validator{
		reservable: clamp.RequireAll,
		committed:  clamp.RequireAll,
		occupied:   RequireReservationBooking,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate splits intervals by metric, clamps each tier and returns the tiers
// concatenated in chain order. Intervals with metrics outside the chain are ignored.
func (v *Validator) Validate(intervals []model.Interval) ([]model.ClampedInterval, error) {
	tiers := split(intervals)

	total := passThrough(tiers[types.MetricTotal])

	reservable, err := clamp.Clamp(tiers[types.MetricReservable], validOnly(total), ReservableKeys,
		clamp.WithRequireParent(v.reservable))
	if err != nil {
		return nil, fmt.Errorf("reservable: %w", err)
	}

	committed, err := clamp.Clamp(tiers[types.MetricCommitted], validOnly(reservable), CommittedKeys,
		clamp.WithRequireParent(v.committed))
	if err != nil {
		return nil, fmt.Errorf("committed: %w", err)
	}

	occupiedIn := slices.Concat(tiers[types.MetricOccupiedReservation], tiers[types.MetricOccupiedOndemand])
	occupied, err := clamp.Clamp(occupiedIn, DedupeCommitted(validOnly(committed)), OccupiedKeys,
		clamp.WithRequireParent(v.occupied))
	if err != nil {
		return nil, fmt.Errorf("occupied: %w", err)
	}

	out := make([]model.ClampedInterval, 0, len(total)+len(reservable)+len(committed)+len(occupied))
	out = append(out, total...)
	out = append(out, reservable...)
	out = append(out, committed...)
	return append(out, occupied...), nil
}

// DedupeCommitted keeps the first committed row per (hostname, reservation, resource).
// Several allocations can map onto one reservation on the same host, and matching
// occupancy against each of them would duplicate fragments.
func DedupeCommitted(committed []model.Interval) []model.Interval {
	return dedupe.KeepFirst(committed, func(iv model.Interval) string {
		return dedupe.Key(iv.Context[model.ColHostname], iv.Context[model.ColReservationID], string(iv.Resource))
	})
}

func split(intervals []model.Interval) map[types.Metric][]model.Interval {
	tiers := make(map[types.Metric][]model.Interval)
	for _, iv := range intervals {
		tiers[iv.Metric] = append(tiers[iv.Metric], iv)
	}
	return tiers
}

func passThrough(intervals []model.Interval) []model.ClampedInterval {
	out := make([]model.ClampedInterval, len(intervals))
	for i, iv := range intervals {
		out[i] = model.ClampedInterval{
			Interval:      iv,
			Row:           i,
			OriginalStart: iv.Start,
			OriginalEnd:   iv.End,
			Valid:         true,
			CoerceAction:  types.CoerceNone,
		}
	}
	return out
}

func validOnly(rows []model.ClampedInterval) []model.Interval {
	out := make([]model.Interval, 0, len(rows))
	for _, r := range rows {
		if r.Valid {
			out = append(out, r.Interval)
		}
	}
	return out
}
