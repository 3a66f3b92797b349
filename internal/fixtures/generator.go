// Package fixtures builds deterministic synthetic raw tables for one site and
// writes them as parquet in the layout the source loader reads.
package fixtures

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spanline/internal/adapters/registry"
	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/legacy"
	"github.com/okian/spanline/internal/domain/model"
)

// Host sizing of the synthetic baremetal nodes.
const (
	hostVCPUs    = 48
	hostMemoryMB = 196608
	hostLocalGB  = 240
)

// Schedule of the synthetic leases.
const (
	leaseGap      = 2 * 24 * time.Hour
	leaseLength   = 3 * 24 * time.Hour
	launchDelay   = time.Hour
	hostLeadTime  = 30 * 24 * time.Hour
	retiredAfter  = 20 * 24 * time.Hour
	legacyDays    = 2
	legacyPerHost = 24.0
)

// Config describes a synthetic site.
type Config struct {
	Site   string
	Start  time.Time
	Hosts  int
	Leases int
	// OnDemand adds one kvm instance outside any reservation.
	OnDemand bool
	// Legacy adds daily usage rows from the old collector.
	Legacy bool
}

// DefaultConfig returns a small site starting at start.
func DefaultConfig(site string, start time.Time) Config {
	return Config{Site: site, Start: start.UTC(), Hosts: 4, Leases: 6, OnDemand: true, Legacy: true}
}

// Hostname returns the hypervisor hostname of host i.
func Hostname(site string, i int) string {
	return fmt.Sprintf("%s-node-%02d", site, i)
}

// Generate builds the raw tables of cfg. The same cfg always yields the same
// rows and ids.
func Generate(cfg Config) *source.Tables {
	g := &generator{cfg: cfg, ns: uuid.NewSHA1(uuid.NameSpaceURL, []byte("spanline:"+cfg.Site)), t: source.NewTables(cfg.Site)}
	g.hosts()
	g.leases()
	if cfg.OnDemand {
		g.onDemand()
	}
	if cfg.Legacy {
		g.legacy()
	}
	g.markLoaded()
	return g.t
}

type generator struct {
	cfg    Config
	ns     uuid.UUID
	t      *source.Tables
	nextID int
}

func (g *generator) id(kind string, i int) string {
	return uuid.NewSHA1(g.ns, []byte(kind+"/"+strconv.Itoa(i))).String()
}

func (g *generator) serial() string {
	g.nextID++
	return strconv.Itoa(g.nextID)
}

func (g *generator) hosts() {
	created := g.cfg.Start.Add(-hostLeadTime)
	for i := 0; i < g.cfg.Hosts; i++ {
		name := Hostname(g.cfg.Site, i)
		var deleted *time.Time
		// The last host retires inside the window.
		if i == g.cfg.Hosts-1 && g.cfg.Hosts > 1 {
			deleted = model.Ref(g.cfg.Start.Add(retiredAfter))
		}
		g.t.NovaHosts = append(g.t.NovaHosts, source.NovaHost{
			ID: strconv.Itoa(i + 1), Hostname: name, HypervisorType: "ironic",
			CreatedAt: created, DeletedAt: deleted,
			VCPUs: hostVCPUs, MemoryMB: hostMemoryMB, LocalGB: hostLocalGB,
		})
		g.t.NovaServices = append(g.t.NovaServices, source.NovaService{
			ID: strconv.Itoa(i + 1), Host: name, Binary: registry.NovaBinaryCompute,
			CreatedAt: created, DeletedAt: deleted,
		})
		g.t.BlazarHosts = append(g.t.BlazarHosts, source.BlazarHost{
			ID: strconv.Itoa(i + 1), Hostname: name, HypervisorType: "ironic",
			CreatedAt: created.Add(time.Hour), DeletedAt: deleted,
			VCPUs: hostVCPUs, MemoryMB: hostMemoryMB, LocalGB: hostLocalGB,
		})
	}
}

// leases books the hosts that never retire in rotation. Every other lease
// launches an instance for most of its length.
func (g *generator) leases() {
	active := g.cfg.Hosts - 1
	if active < 1 {
		active = g.cfg.Hosts
	}
	if active < 1 {
		return
	}
	for k := 0; k < g.cfg.Leases; k++ {
		start := g.cfg.Start.Add(time.Duration(k) * leaseGap)
		end := start.Add(leaseLength)
		leaseID := g.id("lease", k)
		reservationID := g.id("reservation", k)
		host := g.t.BlazarHosts[k%active]

		g.t.BlazarLeases = append(g.t.BlazarLeases, source.BlazarLease{
			ID: leaseID, ProjectID: g.id("project", k%2),
			CreatedAt: start.Add(-24 * time.Hour), StartDate: start, EndDate: model.Ref(end),
		})
		g.t.BlazarReservations = append(g.t.BlazarReservations, source.BlazarReservation{
			ID: reservationID, LeaseID: leaseID, ResourceType: "physical:host",
			CreatedAt: start.Add(-24 * time.Hour),
		})
		g.t.BlazarAllocations = append(g.t.BlazarAllocations, source.BlazarAllocation{
			ID: g.id("allocation", k), ComputeHostID: host.ID, ReservationID: reservationID,
			CreatedAt: start.Add(-24 * time.Hour),
		})

		if k%2 == 0 {
			g.instance(k, host.Hostname, reservationID, start.Add(launchDelay), end.Add(-launchDelay))
		}
	}
}

func (g *generator) instance(k int, node, reservationID string, launched, terminated time.Time) {
	instanceUUID := g.id("instance", k)
	g.t.NovaInstances = append(g.t.NovaInstances, source.NovaInstance{
		ID: g.serial(), UUID: instanceUUID, Host: "ironic-conductor", Node: node,
		CreatedAt: launched.Add(-10 * time.Minute), LaunchedAt: model.Ref(launched),
		DeletedAt: model.Ref(terminated.Add(time.Minute)), TerminatedAt: model.Ref(terminated),
		VCPUs: hostVCPUs, MemoryMB: hostMemoryMB, RootGB: hostLocalGB,
	})
	spec := fmt.Sprintf(`{"nova_object.data":{"scheduler_hints":{"reservation":[%q]},"flavor":{"nova_object.data":{"name":"baremetal"}}}}`, reservationID)
	g.t.RequestSpecs = append(g.t.RequestSpecs, source.RequestSpec{InstanceUUID: instanceUUID, Spec: spec})

	actionID := g.serial()
	g.t.InstanceActions = append(g.t.InstanceActions, source.InstanceAction{ID: actionID, InstanceUUID: instanceUUID})
	g.t.ActionEvents = append(g.t.ActionEvents,
		source.ActionEvent{ActionID: actionID, Event: "compute_build_and_run_instance", Host: node, Result: "Success", StartTime: model.Ref(launched.Add(-5 * time.Minute))},
		source.ActionEvent{ActionID: actionID, Event: "compute_terminate_instance", Host: node, Result: "Success", StartTime: model.Ref(terminated)},
	)
}

func (g *generator) onDemand() {
	launched := g.cfg.Start.Add(12 * time.Hour)
	g.t.NovaInstances = append(g.t.NovaInstances, source.NovaInstance{
		ID: g.serial(), UUID: g.id("instance", -1), Host: g.cfg.Site + "-kvm-01", Node: g.cfg.Site + "-kvm-01",
		CreatedAt: launched.Add(-time.Minute), LaunchedAt: model.Ref(launched),
		VCPUs: 4, MemoryMB: 8192, RootGB: 40,
	})
}

func (g *generator) legacy() {
	n := float64(g.cfg.Hosts)
	for d := 0; d < legacyDays; d++ {
		g.t.LegacyUsage = append(g.t.LegacyUsage, legacy.DailyHours{
			Date: g.cfg.Start.AddDate(0, 0, d), NodeType: "compute_haswell",
			MaintHours: legacyPerHost, ReservedHours: 12, UsedHours: 36,
			TotalHours: n * legacyPerHost,
		})
	}
}

func (g *generator) markLoaded() {
	rows := map[source.Table]int{
		source.NovaComputeNodes:           len(g.t.NovaHosts),
		source.NovaServices:               len(g.t.NovaServices),
		source.NovaInstances:              len(g.t.NovaInstances),
		source.NovaRequestSpecs:           len(g.t.RequestSpecs),
		source.NovaInstanceActions:        len(g.t.InstanceActions),
		source.NovaInstanceActionEvents:   len(g.t.ActionEvents),
		source.BlazarComputeHosts:         len(g.t.BlazarHosts),
		source.BlazarAllocations:          len(g.t.BlazarAllocations),
		source.BlazarReservations:         len(g.t.BlazarReservations),
		source.BlazarInstanceReservations: len(g.t.InstanceReservations),
		source.BlazarLeases:               len(g.t.BlazarLeases),
	}
	if g.cfg.Legacy {
		rows[source.LegacyUsageCache] = len(g.t.LegacyUsage)
	}
	for table, n := range rows {
		g.t.MarkLoaded(table, n)
	}
}
