package selection

import (
	"errors"

	"finquery-client/internal/constant"
)

// ErrCapacityExceeded is returned by Toggle when selecting another
// document would exceed the limit. The set is left unchanged.
var ErrCapacityExceeded = errors.New("document selection limit reached")

// Set holds the documents in scope for the next query, in selection
// order. It is mutated only from the single control goroutine.
type Set struct {
	names []string
	limit int
}

func NewSet(limit int) *Set {
	if limit <= 0 {
		limit = constant.MaxSelectedDocuments
	}
	return &Set{limit: limit}
}

// Toggle removes name when present, otherwise appends it at the end.
func (s *Set) Toggle(name string) error {
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			return nil
		}
	}
	if len(s.names) >= s.limit {
		return ErrCapacityExceeded
	}
	s.names = append(s.names, name)
	return nil
}

// Remove drops name from the set. No-op when absent.
func (s *Set) Remove(name string) {
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			return
		}
	}
}

func (s *Set) Contains(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Set) Len() int {
	return len(s.names)
}

// Snapshot returns the selected names in order. A nil result means the
// query is unscoped and searches all documents; a scoped snapshot is
// never empty.
func (s *Set) Snapshot() []string {
	if len(s.names) == 0 {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
