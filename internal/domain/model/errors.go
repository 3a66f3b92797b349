package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaViolation is wrapped by every SchemaViolation.
var ErrSchemaViolation = errors.New("schema violation")

// SchemaViolation reports stage input that does not match the expected shape.
type SchemaViolation struct {
	Stage   string
	Missing []string
	Reason  string
	Row     int
}

func (e *SchemaViolation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrSchemaViolation, e.Stage)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s (row %d)", e.Reason, e.Row)
	}
	return b.String()
}

func (e *SchemaViolation) Unwrap() error { return ErrSchemaViolation }
