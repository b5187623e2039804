package collision

import (
	"github.com/arloliu/bidsphysio/errs"
)

// Tracker tracks names by their hash, detecting duplicate names and keeping
// distinct names that share a hash apart. It keeps names in insertion order.
type Tracker struct {
	names   map[uint64][]string // hash → names sharing it
	ordered []string
}

// NewTracker creates a new tracker.
func NewTracker() *Tracker {
	return &Tracker{
		names:   make(map[uint64][]string),
		ordered: make([]string, 0),
	}
}

// Track records name under hash.
//
// It returns ErrInvalidSignal for an empty name and ErrDuplicateSignal when
// the same name was already tracked. Distinct names sharing a hash are not an
// error; lookups fall back to name comparison.
func (t *Tracker) Track(name string, hash uint64) error {
	if name == "" {
		return errs.ErrInvalidSignal
	}

	for _, n := range t.names[hash] {
		if n == name {
			return errs.ErrDuplicateSignal
		}
	}

	t.names[hash] = append(t.names[hash], name)
	t.ordered = append(t.ordered, name)

	return nil
}

// Contains reports whether name was tracked under hash.
func (t *Tracker) Contains(name string, hash uint64) bool {
	for _, n := range t.names[hash] {
		if n == name {
			return true
		}
	}

	return false
}

// Names returns the tracked names in insertion order.
func (t *Tracker) Names() []string {
	return t.ordered
}
