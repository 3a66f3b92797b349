package source

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/okian/spanline/internal/domain/legacy"
)

type kind int

const (
	text kind = iota
	stamp
	number
)

func (k kind) sqlType() string {
	switch k {
	case stamp:
		return "TIMESTAMP"
	case number:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

type column struct {
	name     string
	kind     kind
	optional bool
}

func req(name string, k kind) column { return column{name: name, kind: k} }
func opt(name string, k kind) column { return column{name: name, kind: k, optional: true} }

// tableSpec names the columns read from a table and how a row is stored.
type tableSpec struct {
	columns []column
	add     func(t *Tables, r record)
}

var specs = map[Table]tableSpec{ //nolint:gochecknoglobals
	NovaComputeNodes: {
		columns: []column{
			req("id", text), req("hypervisor_hostname", text), opt("hypervisor_type", text),
			req("created_at", stamp), opt("deleted_at", stamp),
			req("vcpus", number), req("memory_mb", number), req("local_gb", number),
		},
		add: func(t *Tables, r record) {
			t.NovaHosts = append(t.NovaHosts, NovaHost{
				ID: r.text("id"), Hostname: r.text("hypervisor_hostname"), HypervisorType: r.text("hypervisor_type"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
				VCPUs: r.number("vcpus"), MemoryMB: r.number("memory_mb"), LocalGB: r.number("local_gb"),
			})
		},
	},
	NovaServices: {
		columns: []column{
			req("id", text), req("host", text), req("binary", text),
			req("created_at", stamp), opt("deleted_at", stamp),
		},
		add: func(t *Tables, r record) {
			t.NovaServices = append(t.NovaServices, NovaService{
				ID: r.text("id"), Host: r.text("host"), Binary: r.text("binary"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
			})
		},
	},
	NovaInstances: {
		columns: []column{
			req("id", text), req("uuid", text), opt("host", text), opt("node", text),
			req("created_at", stamp), opt("deleted_at", stamp), opt("launched_at", stamp), opt("terminated_at", stamp),
			opt("vcpus", number), opt("memory_mb", number), opt("root_gb", number),
		},
		add: func(t *Tables, r record) {
			t.NovaInstances = append(t.NovaInstances, NovaInstance{
				ID: r.text("id"), UUID: r.text("uuid"), Host: r.text("host"), Node: r.text("node"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
				LaunchedAt: r.stamp("launched_at"), TerminatedAt: r.stamp("terminated_at"),
				VCPUs: r.number("vcpus"), MemoryMB: r.number("memory_mb"), RootGB: r.number("root_gb"),
			})
		},
	},
	NovaRequestSpecs: {
		columns: []column{req("instance_uuid", text), req("spec", text)},
		add: func(t *Tables, r record) {
			t.RequestSpecs = append(t.RequestSpecs, RequestSpec{InstanceUUID: r.text("instance_uuid"), Spec: r.text("spec")})
		},
	},
	NovaInstanceActions: {
		columns: []column{req("id", text), req("instance_uuid", text)},
		add: func(t *Tables, r record) {
			t.InstanceActions = append(t.InstanceActions, InstanceAction{ID: r.text("id"), InstanceUUID: r.text("instance_uuid")})
		},
	},
	NovaInstanceActionEvents: {
		columns: []column{
			req("action_id", text), req("event", text), opt("host", text), opt("result", text), req("start_time", stamp),
		},
		add: func(t *Tables, r record) {
			t.ActionEvents = append(t.ActionEvents, ActionEvent{
				ActionID: r.text("action_id"), Event: r.text("event"), Host: r.text("host"),
				Result: r.text("result"), StartTime: r.stamp("start_time"),
			})
		},
	},
	BlazarComputeHosts: {
		columns: []column{
			req("id", text), req("hypervisor_hostname", text), opt("hypervisor_type", text),
			req("created_at", stamp), opt("deleted_at", stamp),
			opt("vcpus", number), opt("memory_mb", number), opt("local_gb", number),
		},
		add: func(t *Tables, r record) {
			t.BlazarHosts = append(t.BlazarHosts, BlazarHost{
				ID: r.text("id"), Hostname: r.text("hypervisor_hostname"), HypervisorType: r.text("hypervisor_type"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
				VCPUs: r.number("vcpus"), MemoryMB: r.number("memory_mb"), LocalGB: r.number("local_gb"),
			})
		},
	},
	BlazarAllocations: {
		columns: []column{
			req("id", text), req("compute_host_id", text), req("reservation_id", text),
			req("created_at", stamp), opt("deleted_at", stamp),
		},
		add: func(t *Tables, r record) {
			t.BlazarAllocations = append(t.BlazarAllocations, BlazarAllocation{
				ID: r.text("id"), ComputeHostID: r.text("compute_host_id"), ReservationID: r.text("reservation_id"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
			})
		},
	},
	BlazarReservations: {
		columns: []column{
			req("id", text), req("lease_id", text), opt("resource_type", text),
			req("created_at", stamp), opt("deleted_at", stamp),
		},
		add: func(t *Tables, r record) {
			t.BlazarReservations = append(t.BlazarReservations, BlazarReservation{
				ID: r.text("id"), LeaseID: r.text("lease_id"), ResourceType: r.text("resource_type"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
			})
		},
	},
	BlazarInstanceReservations: {
		columns: []column{
			req("reservation_id", text), opt("vcpus", number), opt("memory_mb", number), opt("disk_gb", number),
		},
		add: func(t *Tables, r record) {
			t.InstanceReservations = append(t.InstanceReservations, InstanceReservation{
				ReservationID: r.text("reservation_id"),
				VCPUs:         r.number("vcpus"), MemoryMB: r.number("memory_mb"), DiskGB: r.number("disk_gb"),
			})
		},
	},
	BlazarLeases: {
		columns: []column{
			req("id", text), opt("project_id", text), req("created_at", stamp), opt("deleted_at", stamp),
			req("start_date", stamp), opt("end_date", stamp),
		},
		add: func(t *Tables, r record) {
			t.BlazarLeases = append(t.BlazarLeases, BlazarLease{
				ID: r.text("id"), ProjectID: r.text("project_id"),
				CreatedAt: r.time("created_at"), DeletedAt: r.stamp("deleted_at"),
				StartDate: r.time("start_date"), EndDate: r.stamp("end_date"),
			})
		},
	},
	LegacyUsageCache: {
		columns: []column{
			req("date", stamp), req("node_type", text),
			req("maint_hours", number), req("reserved_hours", number), req("used_hours", number),
			opt("idle_hours", number), req("total_hours", number),
		},
		add: func(t *Tables, r record) {
			t.LegacyUsage = append(t.LegacyUsage, legacy.DailyHours{
				Date: r.time("date"), NodeType: r.text("node_type"),
				MaintHours: r.number("maint_hours"), ReservedHours: r.number("reserved_hours"),
				UsedHours: r.number("used_hours"), IdleHours: r.number("idle_hours"),
				TotalHours: r.number("total_hours"),
			})
		},
	},
}

// record is one scanned row with nullable destinations per column.
type record struct {
	index map[string]int
	dest  []any
}

func newRecord(cols []column) record {
	r := record{index: make(map[string]int, len(cols)), dest: make([]any, len(cols))}
	for i, c := range cols {
		r.index[c.name] = i
		switch c.kind {
		case stamp:
			r.dest[i] = new(sql.NullTime)
		case number:
			r.dest[i] = new(sql.NullFloat64)
		default:
			r.dest[i] = new(sql.NullString)
		}
	}
	return r
}

func (r record) value(name string) any {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	return r.dest[i]
}

func (r record) text(name string) string {
	if v, ok := r.value(name).(*sql.NullString); ok && v.Valid {
		return v.String
	}
	return ""
}

func (r record) stamp(name string) *time.Time {
	if v, ok := r.value(name).(*sql.NullTime); ok && v.Valid {
		t := v.Time.UTC()
		return &t
	}
	return nil
}

func (r record) time(name string) time.Time {
	if t := r.stamp(name); t != nil {
		return *t
	}
	return time.Time{}
}

func (r record) number(name string) float64 {
	if v, ok := r.value(name).(*sql.NullFloat64); ok && v.Valid {
		return v.Float64
	}
	return 0
}

// selectList casts every column to its scan type. Absent optional columns
// are selected as typed NULLs.
func selectList(cols []column, present map[string]bool) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		src := "NULL"
		if present[c.name] {
			src = quoteIdent(c.name)
		}
		parts = append(parts, fmt.Sprintf("CAST(%s AS %s) AS %s", src, c.kind.sqlType(), quoteIdent(c.name)))
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
