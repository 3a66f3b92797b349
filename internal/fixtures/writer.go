package fixtures

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/okian/spanline/internal/adapters/source"
)

// rowSet is one table ready for the appender.
type rowSet struct {
	columns []string // "name TYPE"
	rows    [][]driver.Value
}

// Write stores every loaded table of t under dir/<site>/ and returns the paths.
func Write(ctx context.Context, dir string, t *source.Tables) ([]string, error) {
	siteDir := filepath.Join(dir, t.Site)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connector: %w", ErrWrite, err)
	}
	defer connector.Close()

	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrWrite, err)
	}
	defer conn.Close()
	duckConn, ok := conn.(*duckdb.Conn)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected connection type %T", ErrWrite, conn)
	}

	sets := rowSets(t)
	var paths []string
	for i, table := range t.Loaded() {
		set, ok := sets[table]
		if !ok {
			continue
		}
		path := filepath.Join(siteDir, table.Filename())
		if err := writeTable(ctx, duckConn, fmt.Sprintf("fixture_%d", i), path, set); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWrite, table, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTable(ctx context.Context, conn *duckdb.Conn, name, path string, set rowSet) error {
	if err := exec(ctx, conn, fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", name, strings.Join(set.columns, ", "))); err != nil {
		return err
	}
	defer func() { _ = exec(context.WithoutCancel(ctx), conn, "DROP TABLE IF EXISTS "+name) }()

	appender, err := duckdb.NewAppenderFromConn(conn, "", name)
	if err != nil {
		return err
	}
	for _, row := range set.rows {
		if err := appender.AppendRow(row...); err != nil {
			_ = appender.Close()
			return err
		}
	}
	if err := appender.Close(); err != nil {
		return err
	}
	return exec(ctx, conn, fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET)", name, strings.ReplaceAll(path, "'", "''")))
}

func exec(ctx context.Context, conn *duckdb.Conn, query string) error {
	_, err := conn.ExecContext(ctx, query, []driver.NamedValue{})
	return err
}

// ts turns an optional stamp into a nullable appender value.
func ts(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func rowSets(t *source.Tables) map[source.Table]rowSet {
	sets := make(map[source.Table]rowSet)

	hosts := rowSet{columns: []string{"id VARCHAR", "hypervisor_hostname VARCHAR", "hypervisor_type VARCHAR",
		"created_at TIMESTAMP", "deleted_at TIMESTAMP", "vcpus DOUBLE", "memory_mb DOUBLE", "local_gb DOUBLE"}}
	for _, h := range t.NovaHosts {
		hosts.rows = append(hosts.rows, []driver.Value{h.ID, h.Hostname, h.HypervisorType,
			h.CreatedAt.UTC(), ts(h.DeletedAt), h.VCPUs, h.MemoryMB, h.LocalGB})
	}
	sets[source.NovaComputeNodes] = hosts

	services := rowSet{columns: []string{"id VARCHAR", "host VARCHAR", `"binary" VARCHAR`, "created_at TIMESTAMP", "deleted_at TIMESTAMP"}}
	for _, s := range t.NovaServices {
		services.rows = append(services.rows, []driver.Value{s.ID, s.Host, s.Binary, s.CreatedAt.UTC(), ts(s.DeletedAt)})
	}
	sets[source.NovaServices] = services

	instances := rowSet{columns: []string{"id VARCHAR", "uuid VARCHAR", "host VARCHAR", "node VARCHAR",
		"created_at TIMESTAMP", "deleted_at TIMESTAMP", "launched_at TIMESTAMP", "terminated_at TIMESTAMP",
		"vcpus DOUBLE", "memory_mb DOUBLE", "root_gb DOUBLE"}}
	for _, i := range t.NovaInstances {
		instances.rows = append(instances.rows, []driver.Value{i.ID, i.UUID, i.Host, i.Node,
			i.CreatedAt.UTC(), ts(i.DeletedAt), ts(i.LaunchedAt), ts(i.TerminatedAt), i.VCPUs, i.MemoryMB, i.RootGB})
	}
	sets[source.NovaInstances] = instances

	specs := rowSet{columns: []string{"instance_uuid VARCHAR", "spec VARCHAR"}}
	for _, s := range t.RequestSpecs {
		specs.rows = append(specs.rows, []driver.Value{s.InstanceUUID, s.Spec})
	}
	sets[source.NovaRequestSpecs] = specs

	actions := rowSet{columns: []string{"id VARCHAR", "instance_uuid VARCHAR"}}
	for _, a := range t.InstanceActions {
		actions.rows = append(actions.rows, []driver.Value{a.ID, a.InstanceUUID})
	}
	sets[source.NovaInstanceActions] = actions

	events := rowSet{columns: []string{"action_id VARCHAR", "event VARCHAR", "host VARCHAR", "result VARCHAR", "start_time TIMESTAMP"}}
	for _, e := range t.ActionEvents {
		events.rows = append(events.rows, []driver.Value{e.ActionID, e.Event, e.Host, e.Result, ts(e.StartTime)})
	}
	sets[source.NovaInstanceActionEvents] = events

	blazarHosts := rowSet{columns: hosts.columns}
	for _, h := range t.BlazarHosts {
		blazarHosts.rows = append(blazarHosts.rows, []driver.Value{h.ID, h.Hostname, h.HypervisorType,
			h.CreatedAt.UTC(), ts(h.DeletedAt), h.VCPUs, h.MemoryMB, h.LocalGB})
	}
	sets[source.BlazarComputeHosts] = blazarHosts

	allocations := rowSet{columns: []string{"id VARCHAR", "compute_host_id VARCHAR", "reservation_id VARCHAR",
		"created_at TIMESTAMP", "deleted_at TIMESTAMP"}}
	for _, a := range t.BlazarAllocations {
		allocations.rows = append(allocations.rows, []driver.Value{a.ID, a.ComputeHostID, a.ReservationID, a.CreatedAt.UTC(), ts(a.DeletedAt)})
	}
	sets[source.BlazarAllocations] = allocations

	reservations := rowSet{columns: []string{"id VARCHAR", "lease_id VARCHAR", "resource_type VARCHAR",
		"created_at TIMESTAMP", "deleted_at TIMESTAMP"}}
	for _, r := range t.BlazarReservations {
		reservations.rows = append(reservations.rows, []driver.Value{r.ID, r.LeaseID, r.ResourceType, r.CreatedAt.UTC(), ts(r.DeletedAt)})
	}
	sets[source.BlazarReservations] = reservations

	flavors := rowSet{columns: []string{"reservation_id VARCHAR", "vcpus DOUBLE", "memory_mb DOUBLE", "disk_gb DOUBLE"}}
	for _, r := range t.InstanceReservations {
		flavors.rows = append(flavors.rows, []driver.Value{r.ReservationID, r.VCPUs, r.MemoryMB, r.DiskGB})
	}
	sets[source.BlazarInstanceReservations] = flavors

	leases := rowSet{columns: []string{"id VARCHAR", "project_id VARCHAR", "created_at TIMESTAMP", "deleted_at TIMESTAMP",
		"start_date TIMESTAMP", "end_date TIMESTAMP"}}
	for _, l := range t.BlazarLeases {
		leases.rows = append(leases.rows, []driver.Value{l.ID, l.ProjectID, l.CreatedAt.UTC(), ts(l.DeletedAt),
			l.StartDate.UTC(), ts(l.EndDate)})
	}
	sets[source.BlazarLeases] = leases

	usage := rowSet{columns: []string{"date TIMESTAMP", "node_type VARCHAR", "maint_hours DOUBLE", "reserved_hours DOUBLE",
		"used_hours DOUBLE", "idle_hours DOUBLE", "total_hours DOUBLE"}}
	for _, r := range t.LegacyUsage {
		usage.rows = append(usage.rows, []driver.Value{r.Date.UTC(), r.NodeType, r.MaintHours, r.ReservedHours,
			r.UsedHours, r.IdleHours, r.TotalHours})
	}
	sets[source.LegacyUsageCache] = usage

	return sets
}
