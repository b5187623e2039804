package parser

import (
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/signal"
)

// Registry selects a parser per file and aggregates the parsed containers.
type Registry struct {
	parsers     []Parser
	logger      *slog.Logger
	concurrency int
}

// RegistryOption configures a Registry.
type RegistryOption = options.Option[*Registry]

// WithLogger sets the logger used for per-file progress.
func WithLogger(logger *slog.Logger) RegistryOption {
	return options.NoError(func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// WithConcurrency bounds the number of files parsed at once. Values below 1
// parse files sequentially.
func WithConcurrency(n int) RegistryOption {
	return options.NoError(func(r *Registry) {
		r.concurrency = max(n, 1)
	})
}

// NewRegistry returns a registry trying parsers in the given order.
func NewRegistry(parsers []Parser, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		parsers:     parsers,
		logger:      slog.New(slog.DiscardHandler),
		concurrency: runtime.GOMAXPROCS(0),
	}
	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	return r, nil
}

// Kinds returns the format families of the registered parsers in order.
func (r *Registry) Kinds() []format.Kind {
	kinds := make([]format.Kind, len(r.parsers))
	for i, p := range r.parsers {
		kinds[i] = p.Kind()
	}

	return kinds
}

// Select returns the first parser that can handle src.
func (r *Registry) Select(src Source) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanHandle(src) {
			return p, nil
		}
	}

	return nil, &errs.FormatError{
		Path:   src.Path,
		Format: format.KindUnknown.String(),
		Check:  "detect",
		Err:    fmt.Errorf("%w (tried %v)", errs.ErrNoParser, r.Kinds()),
	}
}

// Parse selects a parser for src and runs it.
func (r *Registry) Parse(src Source) (*signal.Container, error) {
	p, err := r.Select(src)
	if err != nil {
		return nil, err
	}

	c, err := p.Parse(src)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("parsed input",
		slog.String("path", src.Path),
		slog.String("format", p.Kind().String()),
		slog.Any("signals", c.Names()),
	)

	return c, nil
}

// ParseFiles reads and parses every path and merges the results in input
// order. The first failure aborts the whole run. Zero paths yield an empty
// container.
func (r *Registry) ParseFiles(paths []string) (*signal.Container, error) {
	sources := make([]Source, len(paths))
	for i, path := range paths {
		src, err := ReadSource(path)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	return r.ParseSources(sources)
}

// ParseSources parses already loaded sources; see ParseFiles.
func (r *Registry) ParseSources(sources []Source) (*signal.Container, error) {
	selected := make([]Parser, len(sources))
	singles := make(map[format.Kind][]string)
	for i, src := range sources {
		p, err := r.Select(src)
		if err != nil {
			return nil, err
		}
		selected[i] = p

		if sp, ok := p.(SingleFileParser); ok && sp.SingleFile() {
			singles[p.Kind()] = append(singles[p.Kind()], src.Path)
		}
	}
	for kind, paths := range singles {
		if len(paths) > 1 {
			return nil, &errs.FormatError{
				Path:   paths[1],
				Format: kind.String(),
				Check:  "file-count",
				Err:    fmt.Errorf("%w: got %d (%v)", errs.ErrMultipleDICOM, len(paths), paths),
			}
		}
	}

	results := make([]*signal.Container, len(sources))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range sources {
		g.Go(func() error {
			c, err := selected[i].Parse(sources[i])
			if err != nil {
				return err
			}
			results[i] = c
			r.logger.Debug("parsed input",
				slog.String("path", sources[i].Path),
				slog.String("format", selected[i].Kind().String()),
				slog.Any("signals", c.Names()),
			)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := signal.NewContainer()
	for i, c := range results {
		if err := merged.Merge(c); err != nil {
			return nil, fmt.Errorf("merge %q: %w", sources[i].Path, err)
		}
	}

	return merged, nil
}
