package registry

import (
	"time"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

type quantity struct {
	resource types.Resource
	value    float64
}

// hostQuantities is one node plus its vcpus, memory (MB) and disk (GB).
func hostQuantities(vcpus, memoryMB, diskGB float64) []quantity {
	return []quantity{
		{types.ResourceNodes, 1},
		{types.ResourceVCPUs, vcpus},
		{types.ResourceMemory, memoryMB},
		{types.ResourceDisk, diskGB},
	}
}

// fanOut emits one interval per resource quantity. Context maps are shared.
func fanOut(base model.Interval, qs []quantity) []model.Interval {
	out := make([]model.Interval, 0, len(qs))
	for _, q := range qs {
		iv := base
		iv.Resource = q.resource
		iv.Value = q.value
		out = append(out, iv)
	}
	return out
}

// earliest returns the earliest non-nil time.
func earliest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.Before(*out)) {
			out = t
		}
	}
	return out
}

// latest returns the latest non-nil time.
func latest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return out
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func index[T any](rows []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, ok := out[k]; !ok {
			out[k] = r
		}
	}
	return out
}
