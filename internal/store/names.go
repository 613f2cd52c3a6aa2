package store

import "strings"

// Key returns the case-insensitive identity of a service name.
// Windows service names are case-insensitive, so every set operation goes through Key.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NameSet is a case-insensitive set of service names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names []string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was absent.
func (s NameSet) Add(name string) bool {
	k := Key(name)
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[Key(name)]
	return ok
}

// Dedupe trims names, drops blanks and case-insensitive repeats, and keeps first-seen order.
func Dedupe(names []string) []string {
	seen := make(NameSet, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || !seen.Add(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Difference returns the names in candidates that are not in existing, in candidate order.
func Difference(candidates, existing []string) []string {
	have := NewNameSet(existing)
	var out []string
	for _, n := range Dedupe(candidates) {
		if !have.Has(n) {
			out = append(out, n)
		}
	}
	return out
}
