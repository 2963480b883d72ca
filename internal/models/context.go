package models

import "sort"

// ContextHandle is an opaque identifier for one open tab or window
type ContextHandle string

// String returns the string representation of the handle
func (h ContextHandle) String() string {
	return string(h)
}

// ContextSet is the set of open browsing contexts at one instant
type ContextSet map[ContextHandle]struct{}

// NewContextSet builds a set from handles
func NewContextSet(handles ...ContextHandle) ContextSet {
	set := make(ContextSet, len(handles))
	for _, h := range handles {
		set[h] = struct{}{}
	}
	return set
}

// Contains reports whether h is in the set
func (s ContextSet) Contains(h ContextHandle) bool {
	_, ok := s[h]
	return ok
}

// Difference returns the handles in s that are not in other, sorted for stable output
func (s ContextSet) Difference(other ContextSet) []ContextHandle {
	var diff []ContextHandle
	for h := range s {
		if !other.Contains(h) {
			diff = append(diff, h)
		}
	}
	sort.Slice(diff, func(i, j int) bool { return diff[i] < diff[j] })
	return diff
}

// Equal reports whether both sets hold the same handles
func (s ContextSet) Equal(other ContextSet) bool {
	if len(s) != len(other) {
		return false
	}
	for h := range s {
		if !other.Contains(h) {
			return false
		}
	}
	return true
}

// Handles returns the members sorted
func (s ContextSet) Handles() []ContextHandle {
	handles := make([]ContextHandle, 0, len(s))
	for h := range s {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
