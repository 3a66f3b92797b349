package registry

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/okian/spanline/internal/adapters/source"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// Paths into the serialized nova RequestSpec object.
const (
	hintPath   = `nova_object\.data.scheduler_hints.reservation.0`
	flavorPath = `nova_object\.data.flavor.nova_object\.data.name`
)

const (
	eventSuccess       = "Success"
	computeEventPrefix = "compute_"
	hypervisorIronic   = "ironic"
)

var (
	flavorReservation = regexp.MustCompile(`^reservation:(.+)$`) //nolint:gochecknoglobals

	endEvents = []string{ //nolint:gochecknoglobals
		"compute_terminate_instance",
		"compute_shelve_offload_instance",
		"compute_shelve_instance",
	}
	resumeEvents = []string{"compute_unshelve_instance"} //nolint:gochecknoglobals
)

// ReservationFromSpec extracts the blazar reservation an instance was booked
// against: the scheduler hint first, then a reservation:<id> flavor name.
func ReservationFromSpec(spec string) string {
	if spec == "" || !gjson.Valid(spec) {
		return ""
	}
	in := gjson.Parse(spec)
	if hint := in.Get(hintPath).String(); hint != "" {
		return hint
	}
	if m := flavorReservation.FindStringSubmatch(in.Get(flavorPath).String()); m != nil {
		return m[1]
	}
	return ""
}

// history is what the successful action events say about one instance.
type history struct {
	lastHost   string
	lastHostAt time.Time
	lastResume *time.Time
	ends       []time.Time
}

// terminatedAt is the first end event after the last unshelve.
func (h *history) terminatedAt() *time.Time {
	if h == nil {
		return nil
	}
	var out *time.Time
	for _, e := range h.ends {
		if h.lastResume != nil && !e.After(*h.lastResume) {
			continue
		}
		if out == nil || e.Before(*out) {
			out = &e
		}
	}
	return out
}

func (h *history) host() string {
	if h == nil {
		return ""
	}
	return h.lastHost
}

func histories(t *source.Tables) map[string]*history {
	owner := make(map[string]string, len(t.InstanceActions))
	for _, a := range t.InstanceActions {
		owner[a.ID] = a.InstanceUUID
	}

	out := make(map[string]*history)
	for _, e := range t.ActionEvents {
		if e.Result != eventSuccess || e.StartTime == nil {
			continue
		}
		uuid, ok := owner[e.ActionID]
		if !ok {
			continue
		}
		h, ok := out[uuid]
		if !ok {
			h = &history{}
			out[uuid] = h
		}
		at := *e.StartTime
		// Only compute_* events carry the hypervisor; the rest name a controller.
		if strings.HasPrefix(e.Event, computeEventPrefix) && (h.lastHostAt.IsZero() || at.After(h.lastHostAt)) {
			h.lastHost, h.lastHostAt = e.Host, at
		}
		switch {
		case slices.Contains(resumeEvents, e.Event):
			h.lastResume = latest(h.lastResume, &at)
		case slices.Contains(endEvents, e.Event):
			h.ends = append(h.ends, at)
		}
	}
	return out
}

// hostRecords finds the compute node record in effect when an instance was created.
type hostRecords map[string][]source.NovaHost

func newHostRecords(hosts []source.NovaHost) hostRecords {
	out := make(hostRecords)
	for _, h := range hosts {
		out[h.Hostname] = append(out[h.Hostname], h)
	}
	for _, recs := range out {
		slices.SortStableFunc(recs, func(a, b source.NovaHost) int { return a.CreatedAt.Compare(b.CreatedAt) })
	}
	return out
}

// asOf returns the latest record created at or before at, falling back to the
// earliest record for instances that predate it.
func (r hostRecords) asOf(node string, at time.Time) (source.NovaHost, bool) {
	recs := r[node]
	if len(recs) == 0 {
		return source.NovaHost{}, false
	}
	i, _ := slices.BinarySearchFunc(recs, at, func(h source.NovaHost, t time.Time) int {
		if h.CreatedAt.After(t) {
			return 1
		}
		return -1
	})
	if i == 0 {
		return recs[0], true
	}
	return recs[i-1], true
}

// NovaInstanceOccupied emits launched instances as occupied capacity, split by
// whether they were booked through a reservation or on demand.
type NovaInstanceOccupied struct{}

func (NovaInstanceOccupied) Name() string { return "nova_instance_occupied" }

// Requires lists the mandatory tables. Request specs and action events refine
// the result when loaded.
func (NovaInstanceOccupied) Requires() []source.Table {
	return []source.Table{source.NovaInstances, source.NovaComputeNodes}
}

func (a NovaInstanceOccupied) Intervals(t *source.Tables) []model.Interval {
	reservations := make(map[string]string, len(t.RequestSpecs))
	for _, s := range t.RequestSpecs {
		if _, ok := reservations[s.InstanceUUID]; !ok {
			reservations[s.InstanceUUID] = ReservationFromSpec(s.Spec)
		}
	}
	events := histories(t)
	hosts := newHostRecords(t.NovaHosts)

	out := make([]model.Interval, 0, 4*len(t.NovaInstances))
	for _, inst := range t.NovaInstances {
		if inst.LaunchedAt == nil {
			continue
		}
		h := events[inst.UUID]

		node := inst.Node
		if node == "" {
			node = h.host()
		}
		end := earliest(inst.TerminatedAt, inst.DeletedAt, h.terminatedAt())
		if end != nil && end.Before(inst.CreatedAt) {
			continue
		}

		reservation := reservations[inst.UUID]
		booking, metric := types.BookingOndemand, types.MetricOccupiedOndemand
		if reservation != "" {
			booking, metric = types.BookingReservation, types.MetricOccupiedReservation
		}

		qs := hostQuantities(inst.VCPUs, inst.MemoryMB, inst.RootGB)
		host, ok := hosts.asOf(node, inst.CreatedAt)
		if ok && host.HypervisorType == hypervisorIronic {
			// Bare metal instances hold the whole node.
			qs = hostQuantities(host.VCPUs, host.MemoryMB, host.LocalGB)
		}

		base := model.Interval{
			EntityID: inst.UUID,
			Start:    inst.CreatedAt,
			End:      end,
			Metric:   metric,
			Source:   a.Name(),
			Context: map[string]string{
				model.ColInstanceID:     inst.UUID,
				model.ColReservationID:  reservation,
				model.ColHostname:       node,
				model.ColHypervisorType: host.HypervisorType,
				model.ColBookingType:    string(booking),
			},
		}
		out = append(out, fanOut(base, qs)...)
	}
	return out
}
