package clamp

import (
	"errors"
	"fmt"

	"github.com/okian/spanline/internal/domain/model"
)

// ErrConfiguration marks a caller bug in the clamp arguments.
var ErrConfiguration = errors.New("clamp configuration error")

// ConfigurationError names the join keys that cannot be resolved.
type ConfigurationError struct {
	JoinKeys []string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s %v", ErrConfiguration, e.Reason, e.JoinKeys)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func checkJoinKeys(joinKeys []string) error {
	if len(joinKeys) == 0 {
		return &ConfigurationError{Reason: "no join keys"}
	}
	var unknown []string
	for _, k := range joinKeys {
		if !model.IsKnownColumn(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &ConfigurationError{JoinKeys: unknown, Reason: "unknown join keys"}
	}
	return nil
}
