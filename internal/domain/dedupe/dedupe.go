// Package dedupe tracks first-seen keys so callers can deduplicate while
// preserving input order.
package dedupe

// Set records keys in the order they are first seen. It is not safe for
// concurrent use; every projection builds its own.
type Set struct {
	seen  map[string]struct{}
	order []string
}

// New creates an empty set sized for about sizeHint keys.
func New(sizeHint int) *Set {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Set{
		seen:  make(map[string]struct{}, sizeHint),
		order: make([]string, 0, sizeHint),
	}
}

// SeenAndRecord reports whether key was already recorded and records it if
// not. Returns false exactly once per distinct key.
func (s *Set) SeenAndRecord(key string) bool {
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	return false
}

// Size returns the number of distinct keys recorded.
func (s *Set) Size() int { return len(s.seen) }

// Keys returns the recorded keys in first-seen order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// FirstBy keeps the first item for each key, in input order.
func FirstBy[T any](items []T, key func(T) string) []T {
	set := New(len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if set.SeenAndRecord(key(it)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// CountDistinct returns the number of distinct keys among items.
func CountDistinct[T any](items []T, key func(T) string) int {
	set := New(len(items))
	for _, it := range items {
		set.SeenAndRecord(key(it))
	}
	return set.Size()
}
