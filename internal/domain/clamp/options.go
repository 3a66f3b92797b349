package clamp

// Option configures a Clamp call.
type Option func(*clamper)

// WithRequireParent sets the policy that decides which children need a parent.
// Rows the policy rejects pass through as valid with coerce action none.
func WithRequireParent(p Policy) Option {
	return func(c *clamper) {
		if p != nil {
			c.require = p
		}
	}
}
