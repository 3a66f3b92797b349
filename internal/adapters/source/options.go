package source

import (
	"github.com/okian/spanline/pkg/logger"
)

// Option configures a Loader.
type Option func(*Loader)

// WithTables restricts loading to the named tables.
func WithTables(tables ...Table) Option {
	return func(l *Loader) {
		if len(tables) > 0 {
			l.tables = tables
		}
	}
}

// WithLogger sets the logger used for load reports.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}
