// Package registry turns raw site tables into intervals and facts. Each adapter
// owns one source and declares the raw tables it needs; adapters whose tables
// are missing are skipped.
package registry

import (
	"fmt"
	"slices"

	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/model"
)

// Adapter is the common part of interval and fact adapters.
type Adapter interface {
	// Name identifies the adapter and is written to the Source column.
	Name() string
	// Requires lists the raw tables the adapter reads.
	Requires() []source.Table
}

// IntervalAdapter converts raw tables into intervals.
type IntervalAdapter interface {
	Adapter
	Intervals(t *source.Tables) []model.Interval
}

// FactAdapter converts raw tables into state observations.
type FactAdapter interface {
	Adapter
	Facts(t *source.Tables) []model.Fact
}

// Skip records an adapter that did not run.
type Skip struct {
	Adapter string
	Missing []source.Table
}

// Registry is an ordered set of adapters with unique names.
type Registry[A Adapter] struct {
	order  []string
	byName map[string]A
}

// New creates a registry holding adapters in the given order.
func New[A Adapter](adapters ...A) (*Registry[A], error) {
	r := &Registry[A]{byName: make(map[string]A, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends an adapter.
func (r *Registry[A]) Register(a A) error {
	name := a.Name()
	if name == "" {
		return ErrUnnamedAdapter
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
	}
	r.order = append(r.order, name)
	r.byName[name] = a
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry[A]) Get(name string) (A, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns adapter names in registration order.
func (r *Registry[A]) Names() []string { return slices.Clone(r.order) }

// Len returns the number of adapters.
func (r *Registry[A]) Len() int { return len(r.order) }

// Ready splits the adapters into those whose tables are loaded and those
// that must be skipped.
func (r *Registry[A]) Ready(t *source.Tables) ([]A, []Skip) {
	var ready []A
	var skipped []Skip
	for _, name := range r.order {
		a := r.byName[name]
		if missing := t.Missing(a.Requires()...); len(missing) > 0 {
			skipped = append(skipped, Skip{Adapter: name, Missing: missing})
			continue
		}
		ready = append(ready, a)
	}
	return ready, skipped
}

// ToIntervals runs every ready adapter and validates each output before
// concatenating them in registration order.
func ToIntervals(r *Registry[IntervalAdapter], t *source.Tables) ([]model.Interval, []Skip, error) {
	ready, skipped := r.Ready(t)
	var out []model.Interval
	for _, a := range ready {
		ivs := a.Intervals(t)
		if err := model.ValidateIntervals("adapter "+a.Name(), ivs); err != nil {
			return nil, skipped, err
		}
		out = append(out, ivs...)
	}
	return out, skipped, nil
}

// ToFacts runs every ready fact adapter.
func ToFacts(r *Registry[FactAdapter], t *source.Tables) ([]model.Fact, []Skip) {
	ready, skipped := r.Ready(t)
	var out []model.Fact
	for _, a := range ready {
		out = append(out, a.Facts(t)...)
	}
	return out, skipped
}

// FilterWindow keeps intervals that touch w, boundaries included.
func FilterWindow(ivs []model.Interval, w model.Window) []model.Interval {
	out := make([]model.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Touches(w) {
			out = append(out, iv)
		}
	}
	return out
}

// DefaultIntervals returns the interval adapters for the current collector.
func DefaultIntervals() *Registry[IntervalAdapter] {
	r, _ := New[IntervalAdapter](
		NovaHostTotal{},
		BlazarHostReservable{},
		BlazarAllocationCommitted{},
		NovaInstanceOccupied{},
	)
	return r
}

// DefaultFacts returns the fact adapters in default priority order.
func DefaultFacts() *Registry[FactAdapter] {
	r, _ := New[FactAdapter](
		NovaComputeNodeFacts{},
		BlazarHostFacts{},
		BlazarAllocationFacts{},
		NovaComputeServiceFacts{},
		BlazarHostImpliesNovaFacts{},
		BlazarAllocationImpliesHostFacts{},
	)
	return r
}
