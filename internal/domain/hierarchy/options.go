package hierarchy

import "github.com/okian/spanline/internal/domain/clamp"

// Option configures a Validator.
type Option func(*Validator)

// WithReservablePolicy overrides which reservable rows need a total parent.
func WithReservablePolicy(p clamp.Policy) Option {
	return func(v *Validator) { v.reservable = p }
}

// WithCommittedPolicy overrides which committed rows need a reservable parent.
func WithCommittedPolicy(p clamp.Policy) Option {
	return func(v *Validator) { v.committed = p }
}

// WithOccupiedPolicy overrides which occupied rows need a committed parent.
func WithOccupiedPolicy(p clamp.Policy) Option {
	return func(v *Validator) { v.occupied = p }
}
