// Package bidsphysio converts physiological recordings into BIDS
// physiological recording files.
//
// Three input families are supported: CMRR logs embedded in a DICOM object,
// BIOPAC AcqKnowledge files and Siemens PMU logs. Every input is decoded into
// a signal.Container, the signals are partitioned into groups of matching
// sampling rate and start time, and each group is written as a JSON sidecar
// plus a compressed tab-separated table.
//
// # Basic Usage
//
//	res, err := bidsphysio.Convert(
//	    []string{"run.puls", "run.resp"},
//	    "sub-01/func/sub-01_task-rest_bold.nii.gz",
//	)
//	if err != nil {
//	    return err
//	}
//	for _, p := range res.Paths {
//	    fmt.Println(p)
//	}
//
// # Package Structure
//
// This package wires the parser, group and bids packages together. Use them
// directly for finer control, e.g. to inspect the container before grouping.
package bidsphysio

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/bidsphysio/bids"
	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/group"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/parser"
	"github.com/arloliu/bidsphysio/parser/acq"
	"github.com/arloliu/bidsphysio/parser/cmrr"
	"github.com/arloliu/bidsphysio/parser/pmu"
	"github.com/arloliu/bidsphysio/signal"
)

// Converter runs the parse, group and write pipeline.
type Converter struct {
	cfg         *config.Config
	family      format.Kind
	compression format.CompressionType
	concurrency int
	logger      *slog.Logger
	verbose     bool

	startTime    *float64
	refTime      *float64
	alignTrigger bool

	registry *parser.Registry
	writer   *bids.Writer
}

// Option configures a Converter.
type Option = options.Option[*Converter]

// WithConfig sets the configuration. The built-in defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return options.New(func(c *Converter) error {
		if cfg == nil {
			return fmt.Errorf("bidsphysio: nil config")
		}
		c.cfg = cfg

		return nil
	})
}

// WithFormat restricts the converter to one input family. format.KindUnknown
// (the default) accepts every family.
func WithFormat(kind format.Kind) Option {
	return options.New(func(c *Converter) error {
		switch kind {
		case format.KindUnknown, format.KindCMRR, format.KindAcq, format.KindPMU:
			c.family = kind
			return nil
		default:
			return fmt.Errorf("bidsphysio: unknown input format %d", kind)
		}
	})
}

// WithCompression selects the table codec.
func WithCompression(ct format.CompressionType) Option {
	return options.NoError(func(c *Converter) {
		c.compression = ct
	})
}

// WithStartTime sets the start time of AcqKnowledge channels, in seconds.
func WithStartTime(seconds float64) Option {
	return options.NoError(func(c *Converter) {
		c.startTime = &seconds
	})
}

// WithReferenceTime sets the time of day, in seconds since midnight, that PMU
// start times are made relative to.
func WithReferenceTime(seconds float64) Option {
	return options.NoError(func(c *Converter) {
		c.refTime = &seconds
	})
}

// WithTriggerAlignment shifts all signals so the first trigger onset is t = 0.
// Runs made only of PMU logs that include a trigger log are aligned anyway.
func WithTriggerAlignment() Option {
	return options.NoError(func(c *Converter) {
		c.alignTrigger = true
	})
}

// WithConcurrency bounds the number of files parsed at once.
func WithConcurrency(n int) Option {
	return options.NoError(func(c *Converter) {
		c.concurrency = n
	})
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithVerbose logs partial recovery warnings of the parsed inputs.
func WithVerbose() Option {
	return options.NoError(func(c *Converter) {
		c.verbose = true
	})
}

// NewConverter builds a Converter.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		compression: format.CompressionGzip,
		logger:      slog.New(slog.DiscardHandler),
	}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}
	if c.cfg == nil {
		c.cfg = config.Default()
	}

	parsers, err := NewParsers(c.cfg, c.family, c.parserOptions())
	if err != nil {
		return nil, err
	}

	regOpts := []parser.RegistryOption{parser.WithLogger(c.logger)}
	if c.concurrency > 0 {
		regOpts = append(regOpts, parser.WithConcurrency(c.concurrency))
	}
	c.registry, err = parser.NewRegistry(parsers, regOpts...)
	if err != nil {
		return nil, err
	}

	c.writer, err = bids.NewWriter(bids.WithCompression(c.compression), bids.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ParserOptions carries the per-family parser options.
type ParserOptions struct {
	Acq []acq.Option
	PMU []pmu.Option
}

func (c *Converter) parserOptions() ParserOptions {
	var po ParserOptions
	if c.startTime != nil {
		po.Acq = append(po.Acq, acq.WithStartTime(*c.startTime))
	}
	if c.refTime != nil {
		po.PMU = append(po.PMU, pmu.WithReferenceTime(*c.refTime))
	}

	return po
}

// NewParsers returns the parsers of family in registry order. The DICOM
// sniffer comes first and the AcqKnowledge header sniffer last.
// format.KindUnknown selects every family.
func NewParsers(cfg *config.Config, family format.Kind, po ParserOptions) ([]parser.Parser, error) {
	var parsers []parser.Parser

	if family == format.KindUnknown || family == format.KindCMRR {
		parsers = append(parsers, cmrr.New(cfg))
	}
	if family == format.KindUnknown || family == format.KindPMU {
		p, err := pmu.New(cfg, po.PMU...)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, p)
	}
	if family == format.KindUnknown || family == format.KindAcq {
		p, err := acq.New(cfg, po.Acq...)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, p)
	}

	return parsers, nil
}

// Result describes a completed conversion.
type Result struct {
	Container *signal.Container
	Groups    []*group.Group
	Prefix    string
	Paths     []string
}

// Convert parses inputs, groups the signals and writes them under the prefix
// derived from bidsPrefix. Any failure before writing leaves no output.
func (c *Converter) Convert(inputs []string, bidsPrefix string) (*Result, error) {
	container, err := c.registry.ParseFiles(inputs)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		for _, w := range container.Warnings() {
			c.logger.Warn("partial recovery", slog.String("path", w.Path), slog.String("detail", w.Msg))
		}
	}

	align := c.alignTrigger
	if !align && pmuTrigger(container, c.cfg) {
		c.logger.Info("aligning to PMU trigger")
		align = true
	}

	groups, err := group.Build(container, c.groupOptions(align)...)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		c.logger.Info("output group",
			slog.String("label", g.Label),
			slog.Float64("rate", g.SamplingRate),
			slog.Float64("start", g.StartTime),
			slog.Any("columns", g.Columns()),
		)
	}

	prefix := bids.Prefix(bidsPrefix)
	paths, err := c.writer.Write(prefix, groups)
	if err != nil {
		return nil, err
	}

	return &Result{Container: container, Groups: groups, Prefix: prefix, Paths: paths}, nil
}

// pmuTrigger reports whether every input is a PMU log and one of them
// recorded the trigger. Such runs are aligned to the first trigger onset
// without being asked to.
func pmuTrigger(container *signal.Container, cl signal.Classifier) bool {
	sources := container.Sources()
	if len(sources) == 0 {
		return false
	}
	for _, src := range sources {
		if src.Format != format.KindPMU {
			return false
		}
	}
	for _, s := range container.All() {
		if cl.Category(s.Name()) == signal.CategoryTrigger {
			return true
		}
	}

	return false
}

func (c *Converter) groupOptions(align bool) []group.Option {
	opts := []group.Option{
		group.WithTolerance(group.Tolerance{
			Rate:         c.cfg.Grouping.RateTolerance,
			StartPeriods: c.cfg.Grouping.StartTolerancePeriods,
		}),
		group.WithClassifier(c.cfg),
	}
	if align {
		opts = append(opts, group.WithTriggerAlignment())
	}

	return opts
}

// Convert is a one-shot helper around NewConverter and Converter.Convert.
func Convert(inputs []string, bidsPrefix string, opts ...Option) (*Result, error) {
	c, err := NewConverter(opts...)
	if err != nil {
		return nil, err
	}

	return c.Convert(inputs, bidsPrefix)
}
