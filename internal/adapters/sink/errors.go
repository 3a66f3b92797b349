package sink

import (
	"errors"
)

// ErrWrite wraps every sink failure.
var ErrWrite = errors.New("sink write failed")
