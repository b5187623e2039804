// Package pmu decodes Siemens PMU physiological logs (.puls, .resp, .ecg,
// .ext).
//
// A PMU log is a whitespace separated stream of integers: a few header
// values, optional comment blocks bracketed by 5002 and 6002, the samples
// (with 5000/6000 trigger markers), the end marker 5003 and a footer with the
// MDH and MPCU clock times. The software generation decides where the samples
// start and what the sampling period is; generations are described by the
// configuration rather than hard-coded.
package pmu

import (
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/parser"
	"github.com/arloliu/bidsphysio/signal"
)

// Parser decodes PMU logs.
type Parser struct {
	cfg       *config.Config
	reference float64
	hasRef    bool
}

var _ parser.Parser = (*Parser)(nil)

// Option configures a Parser.
type Option = options.Option[*Parser]

// WithReferenceTime sets the time, in seconds since midnight, that start
// times are made relative to. Typically the AcquisitionTime of the matching
// imaging run.
func WithReferenceTime(seconds float64) Option {
	return options.New(func(p *Parser) error {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
			return fmt.Errorf("pmu: invalid reference time %v", seconds)
		}
		p.reference = seconds
		p.hasRef = true

		return nil
	})
}

// New returns a PMU parser using the generation table of cfg.
func New(cfg *config.Config, opts ...Option) (*Parser, error) {
	p := &Parser{cfg: cfg}
	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Parser) Kind() format.Kind {
	return format.KindPMU
}

// CanHandle accepts files whose extension maps to a PMU modality.
func (p *Parser) CanHandle(src parser.Source) bool {
	_, ok := p.cfg.ModalityForExtension(src.Ext())
	return ok
}

// Parse decodes one PMU log into a single-signal container.
func (p *Parser) Parse(src parser.Source) (*signal.Container, error) {
	lg, err := scan(src.Data)
	if err != nil {
		return nil, p.formatErr(src.Path, "generation", "%w", err)
	}

	gen, modality, ok := p.detect(lg, src)
	if !ok {
		return nil, p.formatErr(src.Path, "generation", "no configured PMU generation matches the log layout")
	}
	if modality == "" {
		return nil, p.formatErr(src.Path, "modality", "%s log: cannot tell the recorded modality", gen.Name)
	}

	periodMS, ok := gen.Period(modality)
	if !ok {
		return nil, p.formatErr(src.Path, "period", "%s log: no sampling period for modality %s", gen.Name, modality)
	}

	samples, measured, err := decodeSamples(lg.samplesFor(gen))
	if err != nil {
		return nil, p.formatErr(src.Path, "payload", "%w", err)
	}
	if len(samples) == 0 {
		return nil, p.formatErr(src.Path, "payload", "%s log holds no samples", gen.Name)
	}

	if lg.footer.hasMDH() {
		expected := int(math.Floor(float64(lg.footer.mdhStop-lg.footer.mdhStart)/periodMS)) + 1
		if diff := expected - measured; diff > p.cfg.PMU.CountTolerance || -diff > p.cfg.PMU.CountTolerance {
			return nil, p.formatErr(src.Path, "sample-count",
				"MDH times %d..%d at %gms imply %d samples, found %d", lg.footer.mdhStart, lg.footer.mdhStop, periodMS, expected, measured)
		}
	}

	c := signal.NewContainer()
	c.AddSource(src.Path, format.KindPMU)

	start := 0.0
	if lg.footer.hasStart {
		start = float64(lg.footer.mdhStart) / 1000
		if p.hasRef {
			start -= p.reference
		}
	} else {
		c.Warn(errs.Warning{Path: src.Path, Msg: "no LogStartMDHTime in footer, start time set to 0"})
	}

	label := p.cfg.Label(modality)
	sig, err := signal.New(c.UniqueName(label), 1000/periodMS, start, samples, signal.WithUnits(p.cfg.Unit(label)))
	if err != nil {
		return nil, p.formatErr(src.Path, "payload", "%w", err)
	}
	if err := c.Add(sig); err != nil {
		return nil, err
	}

	return c, nil
}

// detect returns the first configured generation matching the log layout and
// the modality it implies.
func (p *Parser) detect(lg *pmuLog, src parser.Source) (config.Generation, string, bool) {
	for _, gen := range p.cfg.PMU.Generations {
		if gen.CommentBlocks != (len(lg.blocks) > 0) {
			continue
		}
		if gen.SamplesAfterBlock > len(lg.blocks) {
			continue
		}

		if gen.VersionMarker != "" {
			modality, ok := lg.marked(gen.VersionMarker)
			if !ok {
				continue
			}

			return gen, modality, true
		}

		modality, _ := p.cfg.ModalityForExtension(src.Ext())

		return gen, modality, true
	}

	return config.Generation{}, "", false
}

func (p *Parser) formatErr(path, check, msg string, args ...any) error {
	return errs.NewFormatError(path, format.KindPMU.String(), check, msg, args...)
}
