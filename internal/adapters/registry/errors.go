package registry

import (
	"errors"
)

// Registry errors.
var (
	ErrDuplicateAdapter = errors.New("adapter already registered")
	ErrUnnamedAdapter   = errors.New("adapter has no name")
)
