package registry_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spanline/internal/adapters/registry"
	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func ref(d int) *time.Time { return model.Ref(day(d)) }

func loaded(t *source.Tables, tables ...source.Table) *source.Tables {
	for _, name := range tables {
		t.MarkLoaded(name, 1)
	}
	return t
}

func byResource(ivs []model.Interval, r types.Resource) []model.Interval {
	var out []model.Interval
	for _, iv := range ivs {
		if iv.Resource == r {
			out = append(out, iv)
		}
	}
	return out
}

type brokenAdapter struct{}

func (brokenAdapter) Name() string             { return "broken" }
func (brokenAdapter) Requires() []source.Table { return nil }
func (brokenAdapter) Intervals(*source.Tables) []model.Interval {
	return []model.Interval{{EntityID: "x", Start: day(5), End: ref(1), Metric: types.MetricTotal, Resource: types.ResourceNodes}}
}

func TestRegistry(t *testing.T) {
	Convey("Given the default interval registry", t, func() {
		reg := registry.DefaultIntervals()

		Convey("Then adapters keep registration order", func() {
			So(reg.Names(), ShouldResemble, []string{
				"nova_host_total", "blazar_host_reservable", "blazar_allocation_committed", "nova_instance_occupied",
			})
			_, ok := reg.Get("nova_host_total")
			So(ok, ShouldBeTrue)
		})

		Convey("When only nova compute nodes are loaded", func() {
			tables := loaded(source.NewTables("uc"), source.NovaComputeNodes)
			tables.NovaHosts = []source.NovaHost{{ID: "1", Hostname: "c01", CreatedAt: day(1), VCPUs: 48, MemoryMB: 1024, LocalGB: 200}}

			ivs, skipped, err := registry.ToIntervals(reg, tables)

			Convey("Then the other adapters are skipped with their missing tables", func() {
				So(err, ShouldBeNil)
				So(skipped, ShouldHaveLength, 3)
				So(skipped[0].Adapter, ShouldEqual, "blazar_host_reservable")
				So(skipped[0].Missing, ShouldResemble, []source.Table{source.BlazarComputeHosts})
				So(ivs, ShouldHaveLength, 4)
			})
		})

		Convey("When registering a duplicate name", func() {
			err := reg.Register(registry.NovaHostTotal{})
			So(errors.Is(err, registry.ErrDuplicateAdapter), ShouldBeTrue)
		})

		Convey("When an adapter emits an inverted interval", func() {
			bad, err := registry.New[registry.IntervalAdapter](brokenAdapter{})
			So(err, ShouldBeNil)
			_, _, err = registry.ToIntervals(bad, source.NewTables("uc"))

			Convey("Then a schema violation names the adapter", func() {
				var sv *model.SchemaViolation
				So(errors.As(err, &sv), ShouldBeTrue)
				So(sv.Stage, ShouldEqual, "adapter broken")
			})
		})
	})

	Convey("Given intervals around a window", t, func() {
		w := model.Window{Start: day(10), End: day(20)}
		ivs := []model.Interval{
			{EntityID: "before", Start: day(1), End: ref(9)},
			{EntityID: "meets-start", Start: day(1), End: ref(10)},
			{EntityID: "open", Start: day(2)},
			{EntityID: "meets-end", Start: day(20)},
			{EntityID: "after", Start: day(21)},
		}

		Convey("Then FilterWindow keeps those touching it", func() {
			var ids []string
			for _, iv := range registry.FilterWindow(ivs, w) {
				ids = append(ids, iv.EntityID)
			}
			So(ids, ShouldResemble, []string{"meets-start", "open", "meets-end"})
		})
	})
}

func TestHostAdapters(t *testing.T) {
	Convey("Given nova and blazar hosts", t, func() {
		tables := loaded(source.NewTables("uc"), source.NovaComputeNodes, source.BlazarComputeHosts)
		tables.NovaHosts = []source.NovaHost{{
			ID: "1", Hostname: "c01", HypervisorType: "ironic", CreatedAt: day(1), DeletedAt: ref(20),
			VCPUs: 48, MemoryMB: 192000, LocalGB: 240,
		}}
		tables.BlazarHosts = []source.BlazarHost{{
			ID: "bh-1", Hostname: "c01", CreatedAt: day(2), VCPUs: 48, MemoryMB: 192000, LocalGB: 240,
		}}

		Convey("When converting nova hosts", func() {
			ivs := registry.NovaHostTotal{}.Intervals(tables)

			Convey("Then one interval per resource carries the host lifetime", func() {
				So(ivs, ShouldHaveLength, 4)
				nodes := byResource(ivs, types.ResourceNodes)
				So(nodes[0].Value, ShouldEqual, 1)
				So(nodes[0].Metric, ShouldEqual, types.MetricTotal)
				So(*nodes[0].End, ShouldEqual, day(20))
				So(byResource(ivs, types.ResourceVCPUs)[0].Value, ShouldEqual, 48)
				So(nodes[0].Context[model.ColHostname], ShouldEqual, "c01")
			})
		})

		Convey("When converting blazar hosts", func() {
			ivs := registry.BlazarHostReservable{}.Intervals(tables)

			Convey("Then the blazar id is carried for allocations to join on", func() {
				So(ivs, ShouldHaveLength, 4)
				So(ivs[0].Metric, ShouldEqual, types.MetricReservable)
				So(ivs[0].Context[model.ColHostID], ShouldEqual, "bh-1")
				So(ivs[0].End, ShouldBeNil)
			})
		})
	})
}

func allocationTables() *source.Tables {
	tables := loaded(source.NewTables("uc"),
		source.BlazarAllocations, source.BlazarReservations, source.BlazarLeases,
		source.BlazarComputeHosts, source.BlazarInstanceReservations)
	tables.BlazarHosts = []source.BlazarHost{{ID: "bh-1", Hostname: "c01", CreatedAt: day(1), VCPUs: 48, MemoryMB: 1000, LocalGB: 100}}
	tables.BlazarReservations = []source.BlazarReservation{
		{ID: "r-host", LeaseID: "l-1", ResourceType: "physical:host"},
		{ID: "r-flavor", LeaseID: "l-2", ResourceType: registry.ReservationFlavorInstance},
		{ID: "r-cancelled", LeaseID: "l-3", ResourceType: "physical:host"},
		{ID: "r-orphan", LeaseID: "l-missing", ResourceType: "physical:host"},
	}
	tables.InstanceReservations = []source.InstanceReservation{{ReservationID: "r-flavor", VCPUs: 4, MemoryMB: 8, DiskGB: 20}}
	tables.BlazarLeases = []source.BlazarLease{
		// Created after its start date: the window opens at creation.
		{ID: "l-1", CreatedAt: day(5), StartDate: day(3), EndDate: ref(10)},
		// Deleted before its end date: the window closes at deletion.
		{ID: "l-2", CreatedAt: day(2), StartDate: day(4), EndDate: ref(12), DeletedAt: ref(8)},
		// Deleted before it started.
		{ID: "l-3", CreatedAt: day(2), StartDate: day(6), EndDate: ref(9), DeletedAt: ref(4)},
	}
	tables.BlazarAllocations = []source.BlazarAllocation{
		{ID: "a-1", ComputeHostID: "bh-1", ReservationID: "r-host", CreatedAt: day(5)},
		{ID: "a-2", ComputeHostID: "bh-1", ReservationID: "r-flavor", CreatedAt: day(2)},
		{ID: "a-3", ComputeHostID: "bh-1", ReservationID: "r-cancelled", CreatedAt: day(2)},
		{ID: "a-4", ComputeHostID: "bh-1", ReservationID: "r-orphan", CreatedAt: day(2)},
	}
	return tables
}

func TestAllocationAdapter(t *testing.T) {
	Convey("Given allocations joined with leases", t, func() {
		ivs := registry.BlazarAllocationCommitted{}.Intervals(allocationTables())
		nodes := byResource(ivs, types.ResourceNodes)

		Convey("Then inverted and lease-less allocations are dropped", func() {
			So(nodes, ShouldHaveLength, 2)
			So(nodes[0].EntityID, ShouldEqual, "a-1")
			So(nodes[1].EntityID, ShouldEqual, "a-2")
		})

		Convey("Then the effective window uses lease creation and deletion", func() {
			So(nodes[0].Start, ShouldEqual, day(5))
			So(*nodes[0].End, ShouldEqual, day(10))
			So(nodes[1].Start, ShouldEqual, day(4))
			So(*nodes[1].End, ShouldEqual, day(8))
		})

		Convey("Then flavor reservations are sized by flavor and host reservations by host", func() {
			vcpus := byResource(ivs, types.ResourceVCPUs)
			So(vcpus[0].Value, ShouldEqual, 48)
			So(vcpus[1].Value, ShouldEqual, 4)
		})

		Convey("Then the hierarchy join keys are present", func() {
			ctx := nodes[0].Context
			So(ctx[model.ColHostID], ShouldEqual, "bh-1")
			So(ctx[model.ColHostname], ShouldEqual, "c01")
			So(ctx[model.ColReservationID], ShouldEqual, "r-host")
			So(ctx[model.ColLeaseID], ShouldEqual, "l-1")
			So(ctx[model.ColAllocationID], ShouldEqual, "a-1")
		})
	})
}
