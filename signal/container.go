package signal

import (
	"fmt"
	"iter"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/internal/collision"
	"github.com/arloliu/bidsphysio/internal/hash"
)

// Source records an input file that contributed to a container.
type Source struct {
	Path   string
	Format format.Kind
}

// Container is an ordered set of uniquely named signals recovered during one
// conversion run, plus the non-fatal warnings raised while recovering them.
//
// Signals are indexed by the xxHash64 of their name; distinct names sharing a
// hash are resolved by name comparison. A Container is not safe for
// concurrent mutation.
type Container struct {
	signals  []*Signal
	byID     map[uint64][]int
	tracker  *collision.Tracker
	warnings []errs.Warning
	sources  []Source
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		byID:    make(map[uint64][]int),
		tracker: collision.NewTracker(),
	}
}

// Add appends s. It fails with ErrDuplicateSignal when a signal of the same
// name is already present.
func (c *Container) Add(s *Signal) error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", errs.ErrInvalidSignal)
	}

	id := hash.ID(s.Name())
	if err := c.tracker.Track(s.Name(), id); err != nil {
		return fmt.Errorf("%w: %q", err, s.Name())
	}

	c.byID[id] = append(c.byID[id], len(c.signals))
	c.signals = append(c.signals, s)

	return nil
}

// Get returns the signal named name.
func (c *Container) Get(name string) (*Signal, bool) {
	for _, idx := range c.byID[hash.ID(name)] {
		if c.signals[idx].Name() == name {
			return c.signals[idx], true
		}
	}

	return nil, false
}

// Has reports whether a signal named name exists.
func (c *Container) Has(name string) bool {
	return c.tracker.Contains(name, hash.ID(name))
}

// UniqueName returns base if unused, otherwise base followed by the smallest
// integer suffix (starting at 2) that is unused.
func (c *Container) UniqueName(base string) string {
	if !c.Has(base) {
		return base
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if !c.Has(name) {
			return name
		}
	}
}

// Len returns the number of signals.
func (c *Container) Len() int {
	return len(c.signals)
}

// Names returns the signal names in insertion order.
func (c *Container) Names() []string {
	return append([]string(nil), c.tracker.Names()...)
}

// Signals returns the signals in insertion order.
func (c *Container) Signals() []*Signal {
	return append([]*Signal(nil), c.signals...)
}

// All iterates over the signals in insertion order.
func (c *Container) All() iter.Seq2[int, *Signal] {
	return func(yield func(int, *Signal) bool) {
		for i, s := range c.signals {
			if !yield(i, s) {
				return
			}
		}
	}
}

// Warn records a non-fatal recovery warning.
func (c *Container) Warn(w errs.Warning) {
	c.warnings = append(c.warnings, w)
}

// Warnings returns the recorded warnings.
func (c *Container) Warnings() []errs.Warning {
	return append([]errs.Warning(nil), c.warnings...)
}

// AddSource records a contributing input file.
func (c *Container) AddSource(path string, kind format.Kind) {
	c.sources = append(c.sources, Source{Path: path, Format: kind})
}

// Sources returns the contributing input files in the order they were added.
func (c *Container) Sources() []Source {
	return append([]Source(nil), c.sources...)
}

// Merge appends every signal, warning and source of other, preserving order.
// A signal whose name is already taken is renamed with UniqueName and the
// rename is recorded as a warning.
func (c *Container) Merge(other *Container) error {
	if other == nil {
		return nil
	}

	var path string
	if len(other.sources) > 0 {
		path = other.sources[0].Path
	}

	var renames []errs.Warning
	for _, s := range other.signals {
		if name := s.Name(); c.Has(name) {
			s = s.withName(c.UniqueName(name))
			renames = append(renames, errs.Warning{
				Path:   path,
				Signal: s.Name(),
				Msg:    fmt.Sprintf("renamed from %q, the name is taken by an earlier input", name),
			})
		}
		if err := c.Add(s); err != nil {
			return err
		}
	}
	c.warnings = append(c.warnings, other.warnings...)
	c.warnings = append(c.warnings, renames...)
	c.sources = append(c.sources, other.sources...)

	return nil
}
