// Package config holds the process-wide, read-only configuration: grouping
// tolerances, per-format decoding constants, the label and unit tables and
// the PMU generation signatures.
//
// A Config is decoded once at start-up and passed explicitly to the parser
// and engine constructors. Nothing in this package mutates a Config after
// Load returns.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/arloliu/bidsphysio/signal"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is the complete configuration.
type Config struct {
	Grouping         Grouping                   `yaml:"grouping"`
	CMRR             CMRR                       `yaml:"cmrr"`
	PMU              PMU                        `yaml:"pmu"`
	Labels           []LabelRule                `yaml:"labels"`
	CategoryPrefixes map[string]signal.Category `yaml:"category_prefixes"`
	Units            map[string]string          `yaml:"units"`
}

// Grouping holds the equality tolerances of the grouping engine.
type Grouping struct {
	RateTolerance         float64 `yaml:"rate_tolerance"`
	StartTolerancePeriods float64 `yaml:"start_tolerance_periods"`
}

// CMRR holds the CMRR log decoding constants.
type CMRR struct {
	TickSeconds    float64 `yaml:"tick_seconds"`
	MaxTickJitter  int     `yaml:"max_tick_jitter"`
	MaxSpanSeconds float64 `yaml:"max_span_seconds"`
}

// PMU holds the PMU decoding constants and generation signatures.
type PMU struct {
	CountTolerance int               `yaml:"count_tolerance"`
	Extensions     map[string]string `yaml:"extensions"`
	Generations    []Generation      `yaml:"generations"`
}

// Generation describes how to recognise and decode one PMU software generation.
type Generation struct {
	Name string `yaml:"name"`
	// VersionMarker, when set, must prefix a token of a comment block; the
	// rest of that token names the modality.
	VersionMarker string `yaml:"version_marker"`
	// CommentBlocks reports whether the first line carries 5002…6002 blocks.
	CommentBlocks bool `yaml:"comment_blocks"`
	// SamplesAfterBlock, when positive, starts the sample stream after the
	// n-th comment block closes.
	SamplesAfterBlock int `yaml:"samples_after_block"`
	// HeaderValues is the number of leading values that precede the samples
	// when SamplesAfterBlock is zero.
	HeaderValues    int                `yaml:"header_values"`
	PeriodsMS       map[string]float64 `yaml:"periods_ms"`
	DefaultPeriodMS float64            `yaml:"default_period_ms"`
}

// Period returns the sampling period in milliseconds for modality.
func (g Generation) Period(modality string) (float64, bool) {
	if p, ok := g.PeriodsMS[strings.ToUpper(modality)]; ok && p > 0 {
		return p, true
	}
	if g.DefaultPeriodMS > 0 {
		return g.DefaultPeriodMS, true
	}

	return 0, false
}

// LabelRule maps raw channel names to a canonical label. Exact entries are
// compared to the whole lower-cased name; Contains entries are substrings.
type LabelRule struct {
	Label    string   `yaml:"label"`
	Exact    []string `yaml:"exact"`
	Contains []string `yaml:"contains"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(nil, defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in configuration: %v", err))
	}

	return cfg
}

// Load returns the built-in configuration overlaid with the YAML file at
// path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(Default(), data)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes data on top of the built-in configuration.
func Parse(data []byte) (*Config, error) {
	return decode(Default(), data)
}

func decode(base *Config, data []byte) (*Config, error) {
	cfg := &Config{}
	if base != nil {
		cfg = base
	}

	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize lower-cases the label match entries, since Label compares them
// against lower-cased names.
func (c *Config) normalize() {
	for i := range c.Labels {
		r := &c.Labels[i]
		r.Exact = lowerAll(r.Exact)
		r.Contains = lowerAll(r.Contains)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}

	return out
}

// Validate checks the configuration for values no decoder can work with.
func (c *Config) Validate() error {
	var errList []error

	if c.Grouping.RateTolerance < 0 {
		errList = append(errList, fmt.Errorf("grouping.rate_tolerance must be >= 0, got %v", c.Grouping.RateTolerance))
	}
	if c.Grouping.StartTolerancePeriods < 0 {
		errList = append(errList, fmt.Errorf("grouping.start_tolerance_periods must be >= 0, got %v", c.Grouping.StartTolerancePeriods))
	}
	if !(c.CMRR.TickSeconds > 0) {
		errList = append(errList, fmt.Errorf("cmrr.tick_seconds must be > 0, got %v", c.CMRR.TickSeconds))
	}
	if c.CMRR.MaxTickJitter < 0 {
		errList = append(errList, fmt.Errorf("cmrr.max_tick_jitter must be >= 0, got %d", c.CMRR.MaxTickJitter))
	}
	if !(c.CMRR.MaxSpanSeconds > 0) || math.IsInf(c.CMRR.MaxSpanSeconds, 0) {
		errList = append(errList, fmt.Errorf("cmrr.max_span_seconds must be finite and > 0, got %v", c.CMRR.MaxSpanSeconds))
	}
	if c.PMU.CountTolerance < 0 {
		errList = append(errList, fmt.Errorf("pmu.count_tolerance must be >= 0, got %d", c.PMU.CountTolerance))
	}
	if len(c.PMU.Generations) == 0 {
		errList = append(errList, errors.New("pmu.generations must not be empty"))
	}
	for i, g := range c.PMU.Generations {
		if g.Name == "" {
			errList = append(errList, fmt.Errorf("pmu.generations[%d]: missing name", i))
		}
		for modality, p := range g.PeriodsMS {
			if !(p > 0) {
				errList = append(errList, fmt.Errorf("pmu.generations[%d] %s: period for %s must be > 0", i, g.Name, modality))
			}
		}
	}
	for i, r := range c.Labels {
		if r.Label == "" {
			errList = append(errList, fmt.Errorf("labels[%d]: missing label", i))
		}
	}

	return errors.Join(errList...)
}

// Label maps a raw channel or modality name to its canonical label.
//
// Exact matches of every rule are tried before substring matches. Names no
// rule claims are lower-cased with everything but letters and digits removed.
func (c *Config) Label(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))

	for _, r := range c.Labels {
		for _, e := range r.Exact {
			if lower == e {
				return r.Label
			}
		}
	}
	for _, r := range c.Labels {
		for _, k := range r.Contains {
			if k != "" && strings.Contains(lower, k) {
				return r.Label
			}
		}
	}

	var b strings.Builder
	for _, ch := range lower {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return "signal"
	}

	return b.String()
}

// Category implements signal.Classifier using the longest matching name prefix.
func (c *Config) Category(name string) signal.Category {
	prefixes := make([]string, 0, len(c.CategoryPrefixes))
	for p := range c.CategoryPrefixes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}

		return prefixes[i] < prefixes[j]
	})

	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return c.CategoryPrefixes[p]
		}
	}

	return signal.CategoryOther
}

// Unit returns the configured units for a canonical label, or "".
func (c *Config) Unit(label string) string {
	return c.Units[label]
}

// ModalityForExtension returns the PMU modality implied by a file extension.
func (c *Config) ModalityForExtension(ext string) (string, bool) {
	m, ok := c.PMU.Extensions[strings.ToLower(ext)]
	return m, ok
}
