package cmrr

import (
	"fmt"
	"math"
	"sort"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/signal"
)

// gridChannel is a physio channel resampled onto its regular tick grid.
type gridChannel struct {
	raw        string
	firstTic   int64
	sampleTime int64
	samples    []float64
}

// assemble turns the decoded logs into signals.
func (p *Parser) assemble(path string, logs []*logFile) (*signal.Container, error) {
	var info *logFile
	var channels []gridChannel
	for _, lf := range logs {
		if lf.isInfo() {
			if info == nil {
				info = lf
			}

			continue
		}

		for _, ch := range lf.channels {
			samples, err := toGrid(ch.tics, ch.values, lf.sampleTime, int64(p.cfg.CMRR.MaxTickJitter), p.maxSpanTicks())
			if err != nil {
				return nil, p.formatErr(path, "tick-consistency", "%s channel %s: %w", lf.name, ch.name, err)
			}
			channels = append(channels, gridChannel{
				raw:        ch.name,
				firstTic:   ch.tics[0],
				sampleTime: lf.sampleTime,
				samples:    samples,
			})
		}
	}
	if len(channels) == 0 {
		return nil, p.formatErr(path, "log-markers", "no physiological channel log found")
	}

	c := signal.NewContainer()
	c.AddSource(path, format.KindCMRR)

	var onsets []int64
	var ref int64
	if info != nil {
		onsets = volumeOnsets(info.volumes)
		ref = onsets[0]
	} else {
		ref = channels[0].firstTic
		for _, ch := range channels[1:] {
			ref = min(ref, ch.firstTic)
		}
		c.Warn(errs.Warning{
			Path: path,
			Msg:  "no acquisition info log, start times are relative to the first physio sample",
		})
	}

	tick := p.cfg.CMRR.TickSeconds
	for _, ch := range channels {
		label := p.cfg.Label(ch.raw)
		sig, err := signal.New(
			c.UniqueName(label),
			1/(float64(ch.sampleTime)*tick),
			float64(ch.firstTic-ref)*tick,
			ch.samples,
			signal.WithUnits(p.cfg.Unit(label)),
		)
		if err != nil {
			return nil, p.formatErr(path, "sample-time", "channel %s: %w", ch.raw, err)
		}
		if err := c.Add(sig); err != nil {
			return nil, err
		}
	}

	if info != nil {
		anchor := channels[0]
		label := p.cfg.Label("TRIGGER")
		sig, err := signal.New(
			c.UniqueName(label),
			1/(float64(anchor.sampleTime)*tick),
			float64(anchor.firstTic-ref)*tick,
			triggerTrace(onsets, anchor),
			signal.WithUnits(p.cfg.Unit(label)),
		)
		if err != nil {
			return nil, err
		}
		if err := c.Add(sig); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// toGrid places tick-stamped values on a regular grid of sampleTime ticks
// starting at the first tick. A tick may deviate from its grid position by
// at most jitter ticks and may lie at most maxSpan ticks after the first.
// Missing grid positions become NaN.
func toGrid(tics []int64, values []float64, sampleTime, jitter, maxSpan int64) ([]float64, error) {
	first := tics[0]
	last := tics[len(tics)-1]
	if last < first {
		return nil, fmt.Errorf("tick %d precedes first tick %d", last, first)
	}
	if span := last - first; span < 0 || span > maxSpan {
		return nil, fmt.Errorf("ticks %d..%d span more than %d ticks", first, last, maxSpan)
	}

	samples := make([]float64, 0, (last-first)/sampleTime+1)
	prevIdx := int64(-1)
	for i, tic := range tics {
		if i > 0 && tic <= tics[i-1] {
			return nil, fmt.Errorf("tick %d at row %d does not advance past %d", tic, i, tics[i-1])
		}

		d := tic - first
		idx, r := d/sampleTime, d%sampleTime
		if r > jitter {
			if sampleTime-r > jitter {
				return nil, fmt.Errorf("tick %d is %d ticks off the %d-tick sample grid", tic, min(r, sampleTime-r), sampleTime)
			}
			idx++
		}
		if idx <= prevIdx {
			return nil, fmt.Errorf("tick %d maps to an already filled sample %d", tic, idx)
		}

		for int64(len(samples)) < idx {
			samples = append(samples, math.NaN())
		}
		samples = append(samples, values[i])
		prevIdx = idx
	}

	return samples, nil
}

// maxSpanTicks is the longest recording, in ticks, a channel may cover.
func (p *Parser) maxSpanTicks() int64 {
	return int64(math.Round(p.cfg.CMRR.MaxSpanSeconds / p.cfg.CMRR.TickSeconds))
}

// volumeOnsets returns the first acquisition tick of every volume in volume
// order, using only the first echo when echoes are logged.
func volumeOnsets(rows []volumeRow) []int64 {
	firstEcho := rows[0].echo
	for _, r := range rows {
		firstEcho = min(firstEcho, r.echo)
	}

	byVolume := make(map[int]int64)
	for _, r := range rows {
		if r.echo != firstEcho {
			continue
		}
		if cur, ok := byVolume[r.volume]; !ok || r.start < cur {
			byVolume[r.volume] = r.start
		}
	}

	volumes := make([]int, 0, len(byVolume))
	for v := range byVolume {
		volumes = append(volumes, v)
	}
	sort.Ints(volumes)

	onsets := make([]int64, 0, len(volumes))
	for _, v := range volumes {
		onsets = append(onsets, byVolume[v])
	}

	return onsets
}

// triggerTrace marks every volume onset on the grid of anchor: 1 at the
// sample containing the onset, 0 elsewhere.
func triggerTrace(onsets []int64, anchor gridChannel) []float64 {
	trace := make([]float64, len(anchor.samples))
	for _, on := range onsets {
		d := on - anchor.firstTic
		if d < 0 {
			continue
		}
		if idx := d / anchor.sampleTime; idx < int64(len(trace)) {
			trace[idx] = 1
		}
	}

	return trace
}
