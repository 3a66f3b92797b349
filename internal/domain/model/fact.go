package model

import (
	"time"

	"github.com/okian/spanline/internal/domain/types"
)

// Fact is one source's observation of an entity's state at a timestamp.
type Fact struct {
	Timestamp time.Time
	EntityID  string
	Metric    types.Metric
	State     types.State
	Source    string
}

// Key returns the group the fact belongs to.
func (f Fact) Key() EntityKey {
	return EntityKey{EntityID: f.EntityID, Metric: f.Metric}
}

// Segment is a contiguous period during which one resolved state held.
type Segment struct {
	EntityID string
	Metric   types.Metric
	State    types.State
	Start    time.Time
	End      *time.Time
}
