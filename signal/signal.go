// Package signal defines the normalized intermediate representation produced
// by every format parser: immutable named signals collected in an ordered
// container.
package signal

import (
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/internal/options"
)

// Category is the semantic class of a signal, used to label output groups.
type Category string

const (
	CategoryCardiac     Category = "cardiac"
	CategoryRespiratory Category = "respiratory"
	CategoryTrigger     Category = "trigger"
	CategoryOther       Category = "other"
)

// Classifier maps a canonical signal name to its category.
type Classifier interface {
	Category(name string) Category
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(name string) Category

func (f ClassifierFunc) Category(name string) Category {
	return f(name)
}

// NameClassifier classifies by exact canonical name only.
var NameClassifier = ClassifierFunc(func(name string) Category {
	switch Category(name) {
	case CategoryCardiac, CategoryRespiratory, CategoryTrigger:
		return Category(name)
	default:
		return CategoryOther
	}
})

// Signal is one physiological channel: a uniformly sampled sequence with its
// sampling rate and start time relative to a reference.
//
// A Signal is immutable once constructed.
type Signal struct {
	name    string
	rate    float64 // Hz
	start   float64 // seconds, may be negative
	units   string
	samples []float64
}

// Option configures a Signal under construction.
type Option = options.Option[*Signal]

// WithUnits sets the physical units of the samples.
func WithUnits(units string) Option {
	return options.NoError(func(s *Signal) {
		s.units = units
	})
}

// New creates a Signal. The samples are copied.
//
// It returns ErrInvalidSignal when name is empty, rate is not a positive
// finite number, start is not finite or samples is empty.
func New(name string, rate, start float64, samples []float64, opts ...Option) (*Signal, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: empty name", errs.ErrInvalidSignal)
	case !(rate > 0) || math.IsInf(rate, 0):
		return nil, fmt.Errorf("%w: %q: sampling rate %v", errs.ErrInvalidSignal, name, rate)
	case math.IsNaN(start) || math.IsInf(start, 0):
		return nil, fmt.Errorf("%w: %q: start time %v", errs.ErrInvalidSignal, name, start)
	case len(samples) == 0:
		return nil, fmt.Errorf("%w: %q: no samples", errs.ErrInvalidSignal, name)
	}

	s := &Signal{
		name:    name,
		rate:    rate,
		start:   start,
		samples: append([]float64(nil), samples...),
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Signal) Name() string          { return s.name }
func (s *Signal) SamplingRate() float64 { return s.rate }
func (s *Signal) StartTime() float64    { return s.start }
func (s *Signal) Units() string         { return s.units }
func (s *Signal) Len() int              { return len(s.samples) }

// Period returns the sampling period in seconds.
func (s *Signal) Period() float64 {
	return 1 / s.rate
}

// Duration returns Len() / SamplingRate() in seconds.
func (s *Signal) Duration() float64 {
	return float64(len(s.samples)) / s.rate
}

// At returns sample i.
func (s *Signal) At(i int) float64 {
	return s.samples[i]
}

// Samples returns a copy of the samples.
func (s *Signal) Samples() []float64 {
	return append([]float64(nil), s.samples...)
}

// TimeOf returns the time of sample i relative to the signal's reference.
func (s *Signal) TimeOf(i int) float64 {
	return s.start + float64(i)/s.rate
}

// WithStartTime returns a new Signal sharing the samples but starting at start.
func (s *Signal) WithStartTime(start float64) *Signal {
	dup := *s
	dup.start = start

	return &dup
}

func (s *Signal) withName(name string) *Signal {
	dup := *s
	dup.name = name

	return &dup
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s(%gHz, start=%gs, n=%d)", s.name, s.rate, s.start, len(s.samples))
}
