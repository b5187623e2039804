// Package group partitions a container's signals into output groups of
// compatible sampling rate and start time, and labels each group by its
// dominant signal category.
package group

import (
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/internal/collision"
	"github.com/arloliu/bidsphysio/internal/hash"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/signal"
)

// Group is a set of signals written together as the columns of one table.
type Group struct {
	// Label is empty when the group is the only one.
	Label        string
	Category     signal.Category
	SamplingRate float64
	StartTime    float64
	Signals      []*signal.Signal
}

// Columns returns the member names in column order.
func (g *Group) Columns() []string {
	names := make([]string, len(g.Signals))
	for i, s := range g.Signals {
		names[i] = s.Name()
	}

	return names
}

// Rows returns the number of samples of every member.
func (g *Group) Rows() int {
	if len(g.Signals) == 0 {
		return 0
	}

	return g.Signals[0].Len()
}

func (g *Group) String() string {
	return fmt.Sprintf("%gHz@%.3fs", g.SamplingRate, g.StartTime)
}

func (g *Group) accepts(s *signal.Signal, tol Tolerance) bool {
	if d := math.Abs(s.SamplingRate() - g.SamplingRate); d != 0 && d >= tol.Rate {
		return false
	}
	d := math.Abs(s.StartTime() - g.StartTime)

	return d == 0 || d < tol.StartPeriods/g.SamplingRate
}

// Build partitions the signals of c into groups.
//
// Signals are visited in insertion order; each joins the first group whose
// founding signal matches its rate and start time within the tolerance, or
// founds a new group. Members of a group must have equal lengths. A single
// group is unlabelled; several groups are labelled with their dominant
// category, numbered from the second occurrence of a label on.
func Build(c *signal.Container, opts ...Option) ([]*Group, error) {
	if c == nil || c.Len() == 0 {
		return nil, errs.ErrEmptyContainer
	}

	cfg := &Config{
		Tolerance:  DefaultTolerance(),
		Classifier: signal.NameClassifier,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	signals := c.Signals()
	if cfg.AlignTrigger {
		aligned, err := alignToTrigger(signals, cfg.Classifier)
		if err != nil {
			return nil, err
		}
		signals = aligned
	}

	var groups []*Group
	for _, s := range signals {
		var target *Group
		for _, g := range groups {
			if g.accepts(s, cfg.Tolerance) {
				target = g
				break
			}
		}
		if target == nil {
			target = &Group{SamplingRate: s.SamplingRate(), StartTime: s.StartTime()}
			groups = append(groups, target)
		}
		target.Signals = append(target.Signals, s)
	}

	for _, g := range groups {
		if err := checkLengths(g); err != nil {
			return nil, err
		}
		g.Category = dominantCategory(g, cfg.Classifier)
	}

	if len(groups) > 1 {
		assignLabels(groups)
	}

	return groups, nil
}

func checkLengths(g *Group) error {
	first := g.Signals[0]
	for _, s := range g.Signals[1:] {
		if s.Len() != first.Len() {
			return &errs.AlignmentError{
				Group: g.String(),
				Detail: fmt.Sprintf("column %q has %d samples, column %q has %d",
					first.Name(), first.Len(), s.Name(), s.Len()),
			}
		}
	}

	return nil
}

// dominantCategory returns the most frequent member category; ties go to the
// category seen first.
func dominantCategory(g *Group, cl signal.Classifier) signal.Category {
	counts := make(map[signal.Category]int)
	var order []signal.Category
	for _, s := range g.Signals {
		cat := cl.Category(s.Name())
		if counts[cat] == 0 {
			order = append(order, cat)
		}
		counts[cat]++
	}

	best := order[0]
	for _, cat := range order[1:] {
		if counts[cat] > counts[best] {
			best = cat
		}
	}

	return best
}

func assignLabels(groups []*Group) {
	tracker := collision.NewTracker()
	for _, g := range groups {
		base := string(g.Category)
		label := base
		for n := 2; tracker.Contains(label, hash.ID(label)); n++ {
			label = fmt.Sprintf("%s%d", base, n)
		}
		_ = tracker.Track(label, hash.ID(label))
		g.Label = label
	}
}
