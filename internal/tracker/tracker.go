// Package tracker remembers the last observed status of every host service.
package tracker

import (
	"svckeeper/internal/store"
	"svckeeper/internal/svcmgr"
)

// History maps service name to last observed status. Entries are never
// pruned; a service that disappears from enumeration keeps its last value.
// It is not safe for concurrent use.
type History struct {
	last map[string]svcmgr.Status
}

// New returns an empty History.
func New() *History {
	return &History{last: make(map[string]svcmgr.Status)}
}

// Get returns the last recorded status of name.
func (h *History) Get(name string) (svcmgr.Status, bool) {
	st, ok := h.last[store.Key(name)]
	return st, ok
}

// Set records status for name.
func (h *History) Set(name string, status svcmgr.Status) {
	h.last[store.Key(name)] = status
}

// Len returns the number of tracked services.
func (h *History) Len() int {
	return len(h.last)
}

// Stopped returns the names in snaps that were running at the previous
// record and are not running now, in snapshot order. Services with no
// history produce no edge.
func (h *History) Stopped(snaps []svcmgr.Snapshot) []string {
	var names []string
	for _, s := range snaps {
		prev, ok := h.Get(s.Name)
		if ok && prev == svcmgr.StatusRunning && s.Status != svcmgr.StatusRunning {
			names = append(names, s.Name)
		}
	}
	return names
}

// Record overwrites the history with every entry in snaps.
func (h *History) Record(snaps []svcmgr.Snapshot) {
	for _, s := range snaps {
		h.Set(s.Name, s.Status)
	}
}
