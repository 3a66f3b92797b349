// Package source reads the raw OpenStack database exports of a site.
package source

import (
	"time"

	"github.com/okian/spanline/internal/domain/legacy"
)

// Table names a raw export as <schema>.<table>.
type Table string

// Raw tables read by the adapters.
const (
	NovaComputeNodes           Table = "nova.compute_nodes"
	NovaServices               Table = "nova.services"
	NovaInstances              Table = "nova.instances"
	NovaRequestSpecs           Table = "nova_api.request_specs"
	NovaInstanceActions        Table = "nova.instance_actions"
	NovaInstanceActionEvents   Table = "nova.instance_actions_events"
	BlazarComputeHosts         Table = "blazar.computehosts"
	BlazarAllocations          Table = "blazar.computehost_allocations"
	BlazarReservations         Table = "blazar.reservations"
	BlazarInstanceReservations Table = "blazar.instance_reservations"
	BlazarLeases               Table = "blazar.leases"
	LegacyUsageCache           Table = "chameleon_usage.node_usage_report_cache"
)

// AllTables lists every table in load order.
var AllTables = []Table{ //nolint:gochecknoglobals
	NovaComputeNodes,
	NovaServices,
	NovaInstances,
	NovaRequestSpecs,
	NovaInstanceActions,
	NovaInstanceActionEvents,
	BlazarComputeHosts,
	BlazarAllocations,
	BlazarReservations,
	BlazarInstanceReservations,
	BlazarLeases,
	LegacyUsageCache,
}

// Filename returns the parquet file name of the table.
func (t Table) Filename() string { return string(t) + ".parquet" }

// NovaHost is a row of nova.compute_nodes.
type NovaHost struct {
	ID             string
	Hostname       string
	HypervisorType string
	CreatedAt      time.Time
	DeletedAt      *time.Time
	VCPUs          float64
	MemoryMB       float64
	LocalGB        float64
}

// NovaService is a row of nova.services.
type NovaService struct {
	ID        string
	Host      string
	Binary    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// NovaInstance is a row of nova.instances.
type NovaInstance struct {
	ID           string
	UUID         string
	Host         string
	Node         string
	CreatedAt    time.Time
	DeletedAt    *time.Time
	LaunchedAt   *time.Time
	TerminatedAt *time.Time
	VCPUs        float64
	MemoryMB     float64
	RootGB       float64
}

// RequestSpec is a row of nova_api.request_specs. Spec is the serialized
// nova object as JSON.
type RequestSpec struct {
	InstanceUUID string
	Spec         string
}

// InstanceAction is a row of nova.instance_actions.
type InstanceAction struct {
	ID           string
	InstanceUUID string
}

// ActionEvent is a row of nova.instance_actions_events.
type ActionEvent struct {
	ActionID  string
	Event     string
	Host      string
	Result    string
	StartTime *time.Time
}

// BlazarHost is a row of blazar.computehosts.
type BlazarHost struct {
	ID             string
	Hostname       string
	HypervisorType string
	CreatedAt      time.Time
	DeletedAt      *time.Time
	VCPUs          float64
	MemoryMB       float64
	LocalGB        float64
}

// BlazarAllocation is a row of blazar.computehost_allocations.
type BlazarAllocation struct {
	ID            string
	ComputeHostID string
	ReservationID string
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

// BlazarReservation is a row of blazar.reservations.
type BlazarReservation struct {
	ID           string
	LeaseID      string
	ResourceType string
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// InstanceReservation is a row of blazar.instance_reservations, holding the
// flavor of a flavor:instance reservation.
type InstanceReservation struct {
	ReservationID string
	VCPUs         float64
	MemoryMB      float64
	DiskGB        float64
}

// BlazarLease is a row of blazar.leases.
type BlazarLease struct {
	ID        string
	ProjectID string
	CreatedAt time.Time
	DeletedAt *time.Time
	StartDate time.Time
	EndDate   *time.Time
}

// Tables holds the raw rows of one site. A table that could not be found is
// left empty and reported as absent by Has.
type Tables struct {
	Site string

	NovaHosts            []NovaHost
	NovaServices         []NovaService
	NovaInstances        []NovaInstance
	RequestSpecs         []RequestSpec
	InstanceActions      []InstanceAction
	ActionEvents         []ActionEvent
	BlazarHosts          []BlazarHost
	BlazarAllocations    []BlazarAllocation
	BlazarReservations   []BlazarReservation
	InstanceReservations []InstanceReservation
	BlazarLeases         []BlazarLease
	LegacyUsage          []legacy.DailyHours

	loaded map[Table]int
}

// NewTables returns an empty set for site.
func NewTables(site string) *Tables {
	return &Tables{Site: site, loaded: make(map[Table]int)}
}

// MarkLoaded records that table was read with rows rows.
func (t *Tables) MarkLoaded(table Table, rows int) {
	if t.loaded == nil {
		t.loaded = make(map[Table]int)
	}
	t.loaded[table] = rows
}

// Has reports whether every named table was loaded.
func (t *Tables) Has(tables ...Table) bool {
	for _, name := range tables {
		if _, ok := t.loaded[name]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the named tables that were not loaded.
func (t *Tables) Missing(tables ...Table) []Table {
	var out []Table
	for _, name := range tables {
		if _, ok := t.loaded[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Loaded returns the loaded tables in AllTables order.
func (t *Tables) Loaded() []Table {
	out := make([]Table, 0, len(t.loaded))
	for _, name := range AllTables {
		if _, ok := t.loaded[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Rows returns the row count recorded for table.
func (t *Tables) Rows(table Table) int { return t.loaded[table] }
