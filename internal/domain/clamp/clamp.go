// Package clamp matches child intervals to the parent eras they overlap and
// clips them to the intersection.
//
// Rules per child, in order:
//   - the require-parent policy rejects the row: passes through valid, none
//   - a join key is null: invalid, null_key
//   - no parent with equal join keys overlaps: invalid, orphan, bounds kept
//   - otherwise one valid row per overlapping parent, none when enclosed,
//     clipped when not
//
// A child that overlaps several eras of the same parent key fans out into one
// row per era. Callers aggregate over the fragments.
package clamp

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/dedupe"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// Policy decides whether a child row needs a containing parent.
type Policy func(model.Interval) bool

// RequireAll requires a parent for every row.
func RequireAll(model.Interval) bool { return true }

type clamper struct {
	require Policy
}

// Clamp clips children to the overlapping parents that share joinKeys.
// Output follows child input order, then parent start order.
func Clamp(children, parents []model.Interval, joinKeys []string, opts ...Option) ([]model.ClampedInterval, error) {
	if err := checkJoinKeys(joinKeys); err != nil {
		return nil, err
	}
	c := &clamper{require: RequireAll}
	for _, opt := range opts {
		opt(c)
	}

	index := indexParents(parents, joinKeys)
	out := make([]model.ClampedInterval, 0, len(children))
	for row, child := range children {
		out = c.clampOne(out, row, child, index, joinKeys)
	}
	return out, nil
}

func (c *clamper) clampOne(out []model.ClampedInterval, row int, child model.Interval, index map[string][]model.Interval, joinKeys []string) []model.ClampedInterval {
	base := model.ClampedInterval{
		Interval:      child,
		Row:           row,
		OriginalStart: child.Start,
		OriginalEnd:   child.End,
	}

	if !c.require(child) {
		base.Valid = true
		base.CoerceAction = types.CoerceNone
		return append(out, base)
	}

	key, ok := joinKey(child, joinKeys)
	if !ok {
		base.CoerceAction = types.CoerceNullKey
		return append(out, base)
	}

	matched := false
	for _, p := range index[key] {
		if !overlaps(child, p) {
			continue
		}
		matched = true
		frag := base
		frag.Valid = true
		frag.Start = later(child.Start, p.Start)
		frag.End = earlier(child.End, p.End)
		if encloses(p, child) {
			frag.CoerceAction = types.CoerceNone
		} else {
			frag.CoerceAction = types.CoerceClipped
		}
		out = append(out, frag)
	}
	if !matched {
		base.CoerceAction = types.CoerceOrphan
		out = append(out, base)
	}
	return out
}

func indexParents(parents []model.Interval, joinKeys []string) map[string][]model.Interval {
	index := make(map[string][]model.Interval)
	for _, p := range parents {
		key, ok := joinKey(p, joinKeys)
		if !ok {
			continue
		}
		index[key] = append(index[key], p)
	}
	for _, eras := range index {
		slices.SortStableFunc(eras, func(a, b model.Interval) int { return a.Start.Compare(b.Start) })
	}
	return index
}

func joinKey(iv model.Interval, joinKeys []string) (string, bool) {
	parts := make([]string, len(joinKeys))
	for i, name := range joinKeys {
		v, ok := iv.Column(name)
		if !ok {
			return "", false
		}
		parts[i] = v
	}
	return dedupe.Key(parts...), true
}

// overlaps treats a nil end as +inf on either side.
func overlaps(child, parent model.Interval) bool {
	startsBeforeParentEnds := parent.End == nil || child.Start.Before(*parent.End)
	endsAfterParentStarts := child.End == nil || child.End.After(parent.Start)
	return startsBeforeParentEnds && endsAfterParentStarts
}

func encloses(parent, child model.Interval) bool {
	if child.Start.Before(parent.Start) {
		return false
	}
	if parent.End == nil {
		return true
	}
	return child.End != nil && !child.End.After(*parent.End)
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// earlier returns the smaller end; a nil end only loses to a non-nil one.
func earlier(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
