package registry

import (
	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// NovaHostTotal emits the lifetime of each nova compute node as total capacity.
type NovaHostTotal struct{}

func (NovaHostTotal) Name() string { return "nova_host_total" }

func (NovaHostTotal) Requires() []source.Table {
	return []source.Table{source.NovaComputeNodes}
}

func (a NovaHostTotal) Intervals(t *source.Tables) []model.Interval {
	out := make([]model.Interval, 0, 4*len(t.NovaHosts))
	for _, h := range t.NovaHosts {
		base := model.Interval{
			EntityID: h.Hostname,
			Start:    h.CreatedAt,
			End:      h.DeletedAt,
			Metric:   types.MetricTotal,
			Source:   a.Name(),
			Context: map[string]string{
				model.ColHostname:       h.Hostname,
				model.ColHypervisorType: h.HypervisorType,
			},
		}
		out = append(out, fanOut(base, hostQuantities(h.VCPUs, h.MemoryMB, h.LocalGB))...)
	}
	return out
}

// BlazarHostReservable emits the enrollment of each blazar host as reservable capacity.
type BlazarHostReservable struct{}

func (BlazarHostReservable) Name() string { return "blazar_host_reservable" }

func (BlazarHostReservable) Requires() []source.Table {
	return []source.Table{source.BlazarComputeHosts}
}

func (a BlazarHostReservable) Intervals(t *source.Tables) []model.Interval {
	out := make([]model.Interval, 0, 4*len(t.BlazarHosts))
	for _, h := range t.BlazarHosts {
		base := model.Interval{
			EntityID: h.Hostname,
			Start:    h.CreatedAt,
			End:      h.DeletedAt,
			Metric:   types.MetricReservable,
			Source:   a.Name(),
			Context: map[string]string{
				model.ColHostID:         h.ID,
				model.ColHostname:       h.Hostname,
				model.ColHypervisorType: h.HypervisorType,
			},
		}
		out = append(out, fanOut(base, hostQuantities(h.VCPUs, h.MemoryMB, h.LocalGB))...)
	}
	return out
}
