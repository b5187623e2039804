// Package acq decodes BIOPAC AcqKnowledge (.acq) graph files.
//
// The file starts with a graph header giving the file version, the number of
// channels and the base sampling interval, followed by one header per
// channel, a foreign data section, one data type header per channel and the
// interleaved sample data. Files are written in either byte order; the
// version field decides which.
package acq

import (
	"errors"
	"fmt"
	"math"

	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/endian"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/parser"
	"github.com/arloliu/bidsphysio/signal"
)

// Supported graph header versions.
const (
	MinVersion = 30
	MaxVersion = 132
)

// Parser decodes AcqKnowledge files.
type Parser struct {
	cfg      *config.Config
	start    float64
	hasStart bool
}

var _ parser.Parser = (*Parser)(nil)

// Option configures a Parser.
type Option = options.Option[*Parser]

// WithStartTime sets the start time, in seconds, of every decoded channel.
// AcqKnowledge files carry no clock reference usable for alignment.
func WithStartTime(seconds float64) Option {
	return options.New(func(p *Parser) error {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("acq: invalid start time %v", seconds)
		}
		p.start = seconds
		p.hasStart = true

		return nil
	})
}

// New returns an AcqKnowledge parser.
func New(cfg *config.Config, opts ...Option) (*Parser, error) {
	p := &Parser{cfg: cfg}
	if err := options.Apply(p, opts...); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Parser) Kind() format.Kind {
	return format.KindAcq
}

// CanHandle accepts .acq files and files whose graph header decodes in
// either byte order.
func (p *Parser) CanHandle(src parser.Source) bool {
	if src.Ext() == ".acq" {
		return true
	}
	if len(src.Data) < graphHeaderSize {
		return false
	}
	engine, ok := detectEngine(src.Data)
	if !ok {
		return false
	}

	return endian.Int16(engine, src.Data[10:12]) > 0 && endian.Float64(engine, src.Data[16:24]) > 0
}

// Parse decodes every channel of the file into its own signal.
func (p *Parser) Parse(src parser.Source) (*signal.Container, error) {
	f, err := decode(src.Data)
	if err != nil {
		return nil, p.wrap(src.Path, err)
	}

	c := signal.NewContainer()
	c.AddSource(src.Path, format.KindAcq)

	start := p.start
	if !p.hasStart {
		c.Warn(errs.Warning{Path: src.Path, Msg: "AcqKnowledge files carry no start time, using 0"})
	}

	for _, ch := range f.channels {
		label := p.cfg.Label(ch.name)
		units := ch.units
		if units == "" {
			units = p.cfg.Unit(label)
		}

		rate := 1000 / f.sampleTime / float64(ch.divider)
		sig, err := signal.New(c.UniqueName(label), rate, start, ch.samples, signal.WithUnits(units))
		if err != nil {
			return nil, p.wrap(src.Path, &decodeError{check: "header", err: fmt.Errorf("channel %q: %w", ch.name, err)})
		}
		if err := c.Add(sig); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (p *Parser) wrap(path string, err error) error {
	check := "header"
	var de *decodeError
	if errors.As(err, &de) {
		check = de.check
		err = de.err
	}

	return errs.NewFormatError(path, format.KindAcq.String(), check, "%w", err)
}
