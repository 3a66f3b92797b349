package sink

import (
	"github.com/okian/spanline/pkg/logger"
)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used for write reports.
func WithLogger(log logger.Logger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}
