package source

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kinds of raw table load failure.
var (
	ErrMissing = errors.New("raw table missing")
	ErrAuth    = errors.New("raw table access denied")
	ErrRemote  = errors.New("raw table remote failure")
)

// ErrLoaderSetup is returned when the DuckDB engine cannot be prepared.
var ErrLoaderSetup = errors.New("raw table loader setup failed")

var (
	missingMarkers = []string{"not found", "no such file", "no files found", "nosuchkey", "nosuchbucket", "404"} //nolint:gochecknoglobals
	authMarkers    = []string{"accessdenied", "invalidaccesskeyid", "signaturedoesnotmatch", "latest/api/token"} //nolint:gochecknoglobals
)

// LoadError is a classified failure to read one raw table of a site.
type LoadError struct {
	Kind  error // ErrMissing, ErrAuth or ErrRemote
	Site  string
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: site %s table %s: %v", e.Kind, e.Site, e.Table, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Recoverable reports whether the site can continue without the table.
func (e *LoadError) Recoverable() bool { return e.Kind == ErrMissing }

// Classify wraps err into a LoadError whose kind is derived from the message.
func Classify(site, table string, err error) *LoadError {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	msg := strings.ToLower(err.Error())
	kind := ErrRemote
	switch {
	case errors.Is(err, fs.ErrNotExist), containsAny(msg, missingMarkers):
		kind = ErrMissing
	case containsAny(msg, authMarkers):
		kind = ErrAuth
	}
	return &LoadError{Kind: kind, Site: site, Table: table, Err: err}
}

// KindName returns a short label for metrics and logs.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMissing):
		return "missing"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRemote):
		return "remote"
	default:
		return "other"
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
