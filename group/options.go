package group

import (
	"errors"
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/signal"
)

// Tolerance bounds how far signal metadata may differ within one group.
type Tolerance struct {
	// Rate is the largest absolute sampling rate difference, in Hz.
	Rate float64
	// StartPeriods is the largest start time difference, in sampling periods
	// of the group's founding signal.
	StartPeriods float64
}

// DefaultTolerance returns the default grouping tolerance.
func DefaultTolerance() Tolerance {
	return Tolerance{Rate: 1e-6, StartPeriods: 1.0}
}

// Config holds the grouping settings.
type Config struct {
	Tolerance    Tolerance
	Classifier   signal.Classifier
	AlignTrigger bool
}

// Option configures Build.
type Option = options.Option[*Config]

// WithTolerance replaces the default tolerance.
func WithTolerance(t Tolerance) Option {
	return options.New(func(c *Config) error {
		if !(t.Rate >= 0) || math.IsInf(t.Rate, 0) {
			return fmt.Errorf("group: invalid rate tolerance %v", t.Rate)
		}
		if !(t.StartPeriods >= 0) || math.IsInf(t.StartPeriods, 0) {
			return fmt.Errorf("group: invalid start tolerance %v", t.StartPeriods)
		}
		c.Tolerance = t

		return nil
	})
}

// WithClassifier sets the classifier used to label groups.
func WithClassifier(cl signal.Classifier) Option {
	return options.New(func(c *Config) error {
		if cl == nil {
			return errors.New("group: nil classifier")
		}
		c.Classifier = cl

		return nil
	})
}

// WithTriggerAlignment shifts every signal so that the first rising edge of
// the first trigger signal is t = 0.
func WithTriggerAlignment() Option {
	return options.NoError(func(c *Config) {
		c.AlignTrigger = true
	})
}
