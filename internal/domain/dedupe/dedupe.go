// Package dedupe implements first-wins deduplication over composite keys.
package dedupe

import "strings"

// separator cannot appear in hostnames, uuids or enum values.
const separator = "\x1f"

// Deduper records composite keys so that only the first occurrence is kept.
type Deduper interface {
	// SeenAndRecord reports whether key was seen before and records it if not.
	SeenAndRecord(key string) bool
}

type inMemoryDeduper struct {
	seen     map[string]struct{}
	capacity int
}

// NewInMemoryDeduper creates an unbounded deduper. Keys are never evicted, so the
// first occurrence always wins regardless of input size.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.capacity)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(key string) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Key joins parts into one composite key.
func Key(parts ...string) string {
	return strings.Join(parts, separator)
}

// KeepFirst returns items in input order, dropping every item whose key was
// already produced by an earlier item.
func KeepFirst[T any](items []T, key func(T) string) []T {
	d := NewInMemoryDeduper(WithCapacity(len(items)))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if d.SeenAndRecord(key(it)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// CountDistinct counts distinct keys per group label.
func CountDistinct[T any](items []T, group func(T) string, key func(T) string) map[string]int {
	d := NewInMemoryDeduper(WithCapacity(len(items)))
	counts := make(map[string]int)
	for _, it := range items {
		g := group(it)
		if d.SeenAndRecord(Key(g, key(it))) {
			continue
		}
		counts[g]++
	}
	return counts
}
