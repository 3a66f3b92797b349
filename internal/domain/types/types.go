// Package types contains the enumerations shared across the pipeline.
package types

import "fmt"

// Pipeline front-ends.
const (
	ModeIntervals = "intervals"
	ModeSegments  = "segments"
)

// Metric is the semantic category of a quantity.
type Metric string

const (
	MetricTotal               Metric = "total"
	MetricReservable          Metric = "reservable"
	MetricCommitted           Metric = "committed"
	MetricOccupiedReservation Metric = "occupied_reservation"
	MetricOccupiedOndemand    Metric = "occupied_ondemand"
	MetricAvailable           Metric = "available"
	MetricIdle                Metric = "idle"
)

// Metrics lists every metric in hierarchy order followed by derived metrics.
var Metrics = []Metric{ //nolint:gochecknoglobals
	MetricTotal,
	MetricReservable,
	MetricCommitted,
	MetricOccupiedReservation,
	MetricOccupiedOndemand,
	MetricAvailable,
	MetricIdle,
}

// Rank returns the position of m in Metrics, or len(Metrics) for unknown values.
func (m Metric) Rank() int {
	for i, v := range Metrics {
		if v == m {
			return i
		}
	}
	return len(Metrics)
}

// IsOccupied reports whether m is one of the occupancy tiers.
func (m Metric) IsOccupied() bool {
	return m == MetricOccupiedReservation || m == MetricOccupiedOndemand
}

// ParseMetric converts a raw string into a Metric.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Resource is the physical or virtual unit being measured.
type Resource string

const (
	ResourceNodes  Resource = "nodes"
	ResourceVCPUs  Resource = "vcpus"
	ResourceMemory Resource = "memory"
	ResourceDisk   Resource = "disk"
	ResourceGPU    Resource = "gpu"
	ResourceDevice Resource = "device"
)

// Resources lists every resource in display order.
var Resources = []Resource{ //nolint:gochecknoglobals
	ResourceNodes,
	ResourceVCPUs,
	ResourceMemory,
	ResourceDisk,
	ResourceGPU,
	ResourceDevice,
}

// Rank returns the position of r in Resources, or len(Resources) for unknown values.
func (r Resource) Rank() int {
	for i, v := range Resources {
		if v == r {
			return i
		}
	}
	return len(Resources)
}

// ParseResource converts a raw string into a Resource.
func ParseResource(s string) (Resource, error) {
	for _, r := range Resources {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", s)
}

// CoerceAction records what clamping did to an interval.
type CoerceAction string

const (
	CoerceNone    CoerceAction = "none"
	CoerceClipped CoerceAction = "clipped"
	CoerceOrphan  CoerceAction = "orphan"
	CoerceNullKey CoerceAction = "null_key"
)

// State is a resolved entity state. The zero value means unknown.
type State string

const (
	StateUnknown State = ""
	StateActive  State = "active"
	StateDeleted State = "deleted"
)

// Known reports whether s carries a value.
func (s State) Known() bool { return s != StateUnknown }

// BookingType tells how an instance obtained its host.
type BookingType string

const (
	BookingReservation BookingType = "reservation"
	BookingOndemand    BookingType = "ondemand"
)

// CollectorType identifies which collector produced a usage point.
type CollectorType string

const (
	CollectorCurrent CollectorType = "current"
	CollectorLegacy  CollectorType = "legacy"
)
