package registry

import (
	"time"

	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// NovaBinaryCompute is the service binary that marks a hypervisor.
const NovaBinaryCompute = "nova-compute"

// lifecycle reports an entity as active from start and deleted from end.
func lifecycle(out []model.Fact, entity string, metric types.Metric, src string, start time.Time, end *time.Time) []model.Fact {
	if entity == "" {
		return out
	}
	if !start.IsZero() {
		out = append(out, model.Fact{Timestamp: start, EntityID: entity, Metric: metric, State: types.StateActive, Source: src})
	}
	if end != nil {
		out = append(out, model.Fact{Timestamp: *end, EntityID: entity, Metric: metric, State: types.StateDeleted, Source: src})
	}
	return out
}

// NovaComputeNodeFacts observes hypervisors as total capacity.
type NovaComputeNodeFacts struct{}

func (NovaComputeNodeFacts) Name() string { return "nova_computenode" }

func (NovaComputeNodeFacts) Requires() []source.Table {
	return []source.Table{source.NovaComputeNodes}
}

func (a NovaComputeNodeFacts) Facts(t *source.Tables) []model.Fact {
	out := make([]model.Fact, 0, 2*len(t.NovaHosts))
	for _, h := range t.NovaHosts {
		out = lifecycle(out, h.Hostname, types.MetricTotal, a.Name(), h.CreatedAt, h.DeletedAt)
	}
	return out
}

// NovaComputeServiceFacts observes nova-compute services as total capacity.
type NovaComputeServiceFacts struct{}

func (NovaComputeServiceFacts) Name() string { return "nova_compute_service" }

func (NovaComputeServiceFacts) Requires() []source.Table {
	return []source.Table{source.NovaServices}
}

func (a NovaComputeServiceFacts) Facts(t *source.Tables) []model.Fact {
	out := make([]model.Fact, 0, 2*len(t.NovaServices))
	for _, s := range t.NovaServices {
		if s.Binary != NovaBinaryCompute {
			continue
		}
		out = lifecycle(out, s.Host, types.MetricTotal, a.Name(), s.CreatedAt, s.DeletedAt)
	}
	return out
}

// BlazarHostFacts observes blazar hosts as reservable capacity.
type BlazarHostFacts struct{}

func (BlazarHostFacts) Name() string { return "blazar_computehost" }

func (BlazarHostFacts) Requires() []source.Table {
	return []source.Table{source.BlazarComputeHosts}
}

func (a BlazarHostFacts) Facts(t *source.Tables) []model.Fact {
	return blazarHostFacts(t, types.MetricReservable, a.Name())
}

// BlazarHostImpliesNovaFacts treats an enrolled blazar host as evidence that
// the hypervisor exists.
type BlazarHostImpliesNovaFacts struct{}

func (BlazarHostImpliesNovaFacts) Name() string { return "blazar_computehost_implies_nova" }

func (BlazarHostImpliesNovaFacts) Requires() []source.Table {
	return []source.Table{source.BlazarComputeHosts}
}

func (a BlazarHostImpliesNovaFacts) Facts(t *source.Tables) []model.Fact {
	return blazarHostFacts(t, types.MetricTotal, a.Name())
}

func blazarHostFacts(t *source.Tables, metric types.Metric, src string) []model.Fact {
	out := make([]model.Fact, 0, 2*len(t.BlazarHosts))
	for _, h := range t.BlazarHosts {
		out = lifecycle(out, h.Hostname, metric, src, h.CreatedAt, h.DeletedAt)
	}
	return out
}

// BlazarAllocationFacts observes hosts as committed while allocated to a lease.
type BlazarAllocationFacts struct{}

func (BlazarAllocationFacts) Name() string { return "blazar_allocation" }

func (BlazarAllocationFacts) Requires() []source.Table {
	return BlazarAllocationCommitted{}.Requires()
}

func (a BlazarAllocationFacts) Facts(t *source.Tables) []model.Fact {
	return allocationFacts(t, types.MetricCommitted, a.Name())
}

// BlazarAllocationImpliesHostFacts treats an allocation as evidence that the
// host was reservable.
type BlazarAllocationImpliesHostFacts struct{}

func (BlazarAllocationImpliesHostFacts) Name() string { return "blazar_allocation_implies_host" }

func (BlazarAllocationImpliesHostFacts) Requires() []source.Table {
	return BlazarAllocationCommitted{}.Requires()
}

func (a BlazarAllocationImpliesHostFacts) Facts(t *source.Tables) []model.Fact {
	return allocationFacts(t, types.MetricReservable, a.Name())
}

func allocationFacts(t *source.Tables, metric types.Metric, src string) []model.Fact {
	joined := joinAllocations(t)
	out := make([]model.Fact, 0, 2*len(joined))
	for _, j := range joined {
		entity := j.hostname()
		if entity == "" {
			entity = j.ComputeHostID
		}
		out = lifecycle(out, entity, metric, src, *j.start, j.end)
	}
	return out
}
