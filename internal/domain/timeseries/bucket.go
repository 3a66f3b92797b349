package timeseries

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseBucket parses a bucket size. Besides Go durations ("12h", "90m") it accepts
// whole days and weeks ("1d", "7d", "2w").
func ParseBucket(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidBucket)
	}
	for suffix, unit := range map[string]time.Duration{"d": day, "w": week} {
		if num, ok := strings.CutSuffix(s, suffix); ok {
			n, err := strconv.Atoi(num)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("%w: %q", ErrInvalidBucket, s)
			}
			return time.Duration(n) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBucket, s)
	}
	return d, nil
}
