// Package segment reconciles facts from several sources into one state timeline
// per entity and cuts it into contiguous segments.
package segment

import (
	"slices"
	"time"

	"github.com/okian/spanline/internal/domain/dedupe"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/internal/domain/types"
)

// Event is a change of the resolved state of one group.
type Event struct {
	Timestamp time.Time
	Key       model.EntityKey
	State     types.State
}

// Builder resolves facts by a fixed source priority. The first source in the
// priority list with a known state wins.
type Builder struct {
	priority []string
	rank     map[string]int
}

// NewBuilder creates a Builder. Facts from sources outside priority are ignored.
func NewBuilder(priority []string) *Builder {
	rank := make(map[string]int, len(priority))
	for i, src := range priority {
		if _, dup := rank[src]; !dup {
			rank[src] = i
		}
	}
	return &Builder{priority: slices.Clone(priority), rank: rank}
}

// Priority returns the source order used for reconciliation.
func (b *Builder) Priority() []string { return slices.Clone(b.priority) }

// FactsToEvents resolves the state of each group at each timestamp any source
// reported, and returns only the rows where the state changed. The first row of a
// group is always returned.
func (b *Builder) FactsToEvents(facts []model.Fact) []Event {
	usable := make([]model.Fact, 0, len(facts))
	for _, f := range facts {
		if _, ok := b.rank[f.Source]; ok && !f.Timestamp.IsZero() {
			usable = append(usable, f)
		}
	}
	slices.SortStableFunc(usable, func(x, y model.Fact) int {
		if c := x.Key().Compare(y.Key()); c != 0 {
			return c
		}
		return x.Timestamp.Compare(y.Timestamp)
	})

	var events []Event
	for lo := 0; lo < len(usable); {
		hi := lo
		for hi < len(usable) && usable[hi].Key() == usable[lo].Key() {
			hi++
		}
		events = append(events, b.groupEvents(usable[lo:hi])...)
		lo = hi
	}
	return events
}

// groupEvents walks one group's facts sorted by timestamp. Each source keeps its
// last known state until it reports again.
func (b *Builder) groupEvents(facts []model.Fact) []Event {
	filled := make([]types.State, len(b.priority))
	key := facts[0].Key()

	var (
		out  []Event
		prev types.State
	)
	for lo := 0; lo < len(facts); {
		ts := facts[lo].Timestamp
		hi := lo
		for hi < len(facts) && facts[hi].Timestamp.Equal(ts) {
			hi++
		}
		sameInstant := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(hi - lo))
		for _, f := range facts[lo:hi] {
			if sameInstant.SeenAndRecord(f.Source) {
				continue
			}
			if f.State.Known() {
				filled[b.rank[f.Source]] = f.State
			}
		}

		state := coalesce(filled)
		if len(out) == 0 || state != prev {
			out = append(out, Event{Timestamp: ts, Key: key, State: state})
			prev = state
		}
		lo = hi
	}
	return out
}

func coalesce(filled []types.State) types.State {
	for _, s := range filled {
		if s.Known() {
			return s
		}
	}
	return types.StateUnknown
}

// EventsToSegments closes each event at the next event of its group. The last
// segment of a group stays open. Deleted segments are dropped: a delete only
// closes the segment before it.
func EventsToSegments(events []Event) []model.Segment {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(x, y Event) int {
		if c := x.Key.Compare(y.Key); c != 0 {
			return c
		}
		return x.Timestamp.Compare(y.Timestamp)
	})

	out := make([]model.Segment, 0, len(sorted))
	for i, e := range sorted {
		if e.State == types.StateDeleted {
			continue
		}
		seg := model.Segment{EntityID: e.Key.EntityID, Metric: e.Key.Metric, State: e.State, Start: e.Timestamp}
		if i+1 < len(sorted) && sorted[i+1].Key == e.Key {
			seg.End = model.Ref(sorted[i+1].Timestamp)
		}
		out = append(out, seg)
	}
	return out
}

// Build runs FactsToEvents then EventsToSegments.
func (b *Builder) Build(facts []model.Fact) []model.Segment {
	return EventsToSegments(b.FactsToEvents(facts))
}

// ToSpans turns active segments into sweep-line spans of the given resource and value.
func ToSpans(segments []model.Segment, resource types.Resource, value float64) []model.Span[model.SeriesKey] {
	out := make([]model.Span[model.SeriesKey], 0, len(segments))
	for _, s := range segments {
		if s.State != types.StateActive {
			continue
		}
		out = append(out, model.Span[model.SeriesKey]{
			Key:   model.SeriesKey{Metric: s.Metric, Resource: resource},
			Start: s.Start,
			End:   s.End,
			Value: value,
		})
	}
	return out
}
