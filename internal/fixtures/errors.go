package fixtures

import (
	"errors"
)

// ErrWrite wraps failures while writing fixture parquet files.
var ErrWrite = errors.New("fixture write failed")
