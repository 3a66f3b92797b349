package timeseries

import "errors"

var (
	ErrInvalidBucket = errors.New("invalid bucket size")
	ErrInvalidWindow = errors.New("invalid time window")
)
