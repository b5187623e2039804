package group

import (
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/signal"
)

// alignToTrigger shifts every signal so the first trigger onset is t = 0.
func alignToTrigger(signals []*signal.Signal, cl signal.Classifier) ([]*signal.Signal, error) {
	var trig *signal.Signal
	for _, s := range signals {
		if cl.Category(s.Name()) == signal.CategoryTrigger {
			trig = s
			break
		}
	}
	if trig == nil {
		return nil, &errs.AlignmentError{Group: "all", Detail: "no trigger signal to align to", Err: errs.ErrMissingTrigger}
	}

	idx, ok := Onset(trig)
	if !ok {
		return nil, &errs.AlignmentError{
			Group:  "all",
			Detail: fmt.Sprintf("trigger %q holds no valid samples", trig.Name()),
			Err:    errs.ErrMissingTrigger,
		}
	}
	t0 := trig.TimeOf(idx)

	out := make([]*signal.Signal, len(signals))
	for i, s := range signals {
		out[i] = s.WithStartTime(s.StartTime() - t0)
	}

	return out, nil
}

// Onset returns the index of the first rising edge of a trigger signal: the
// first valid sample at or above the midpoint of its range. A signal that
// starts high has its onset at the first valid sample.
func Onset(s *signal.Signal) (int, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range s.Len() {
		v := s.At(i)
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, false
	}

	mid := lo + (hi-lo)/2
	for i := range s.Len() {
		if v := s.At(i); !math.IsNaN(v) && v >= mid {
			return i, true
		}
	}

	return 0, false
}
