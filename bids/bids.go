// Package bids writes output groups as BIDS physiological recordings: one
// JSON sidecar and one compressed tab-separated table per group.
package bids

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/arloliu/bidsphysio/compress"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/group"
	"github.com/arloliu/bidsphysio/internal/options"
	"github.com/arloliu/bidsphysio/internal/pool"
)

const (
	missingValue = "n/a"
	// cellSizeHint is the expected rendered width of one value plus its
	// separator.
	cellSizeHint = 8
)

// Prefix derives the output prefix from a BIDS path by stripping the
// suffixes .gz, .nii, _bold and _physio, in that order, each at most once.
func Prefix(path string) string {
	for _, suffix := range []string{".gz", ".nii", "_bold", "_physio"} {
		path = strings.TrimSuffix(path, suffix)
	}

	return path
}

// File is one rendered output file.
type File struct {
	Path string
	Data []byte
}

// Writer renders and writes groups.
type Writer struct {
	compression format.CompressionType
	codec       compress.Codec
	mode        fs.FileMode
	logger      *slog.Logger
}

// Option configures a Writer.
type Option = options.Option[*Writer]

// WithCompression selects the table codec. Gzip is the default.
func WithCompression(ct format.CompressionType) Option {
	return options.New(func(w *Writer) error {
		codec, err := compress.CreateCodec(ct)
		if err != nil {
			return err
		}
		w.compression = ct
		w.codec = codec

		return nil
	})
}

// WithFileMode sets the permission bits of written files.
func WithFileMode(mode fs.FileMode) Option {
	return options.NoError(func(w *Writer) {
		w.mode = mode
	})
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	})
}

// NewWriter returns a Writer.
func NewWriter(opts ...Option) (*Writer, error) {
	w := &Writer{
		compression: format.CompressionGzip,
		codec:       compress.NewGzipCompressor(),
		mode:        0o644,
		logger:      slog.New(slog.DiscardHandler),
	}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}

	return w, nil
}

// Compression returns the table codec in use.
func (w *Writer) Compression() format.CompressionType {
	return w.compression
}

// Names returns the sidecar and table paths for a group label. An empty
// label gives the unlabelled names.
func (w *Writer) Names(prefix, label string) (sidecar, table string) {
	base := prefix
	if label != "" {
		base += "_recording-" + label
	}
	base += "_physio"

	return base + ".json", base + ".tsv" + w.compression.Extension()
}

// Render produces every output file in memory.
func (w *Writer) Render(prefix string, groups []*group.Group) ([]File, error) {
	if prefix == "" {
		return nil, errs.ErrEmptyPrefix
	}
	if len(groups) == 0 {
		return nil, errs.ErrEmptyContainer
	}

	files := make([]File, 0, 2*len(groups))
	for _, g := range groups {
		sidecarPath, tablePath := w.Names(prefix, g.Label)

		meta, err := renderSidecar(g)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", sidecarPath, err)
		}
		table, err := w.renderTable(g)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", tablePath, err)
		}

		files = append(files, File{Path: sidecarPath, Data: meta}, File{Path: tablePath, Data: table})
	}

	return files, nil
}

// Write renders every group, then writes the files. Nothing is written when
// rendering fails. It returns the written paths.
func (w *Writer) Write(prefix string, groups []*group.Group) ([]string, error) {
	files, err := w.Render(prefix, groups)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := writeFileAtomic(f.Path, f.Data, w.mode); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.Path, err)
		}
		w.logger.Debug("wrote output file", "path", f.Path, "bytes", len(f.Data))
		paths = append(paths, f.Path)
	}

	return paths, nil
}

func renderSidecar(g *group.Group) ([]byte, error) {
	sc := Sidecar{
		SamplingFrequency: g.SamplingRate,
		StartTime:         g.StartTime,
		Columns:           g.Columns(),
	}
	for _, s := range g.Signals {
		if s.Units() == "" {
			continue
		}
		if sc.Units == nil {
			sc.Units = make(map[string]ColumnInfo)
		}
		sc.Units[s.Name()] = ColumnInfo{Units: s.Units()}
	}

	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(b, '\n'), nil
}

// renderTable writes the rows tab separated, without a header line.
func (w *Writer) renderTable(g *group.Group) ([]byte, error) {
	buf := pool.GetTableBuffer()
	defer pool.PutTableBuffer(buf)

	rows := g.Rows()
	buf.Grow(rows * len(g.Signals) * cellSizeHint)
	for i := range rows {
		for c, s := range g.Signals {
			if c > 0 {
				_ = buf.WriteByte('\t')
			}
			if v := s.At(i); math.IsNaN(v) {
				_, _ = buf.WriteString(missingValue)
			} else {
				buf.AppendFloat(v)
			}
		}
		_ = buf.WriteByte('\n')
	}

	out, err := w.codec.Compress(buf.Bytes())
	if err != nil {
		return nil, err
	}
	if w.compression == format.CompressionNone {
		// the pass-through codec aliases the pooled buffer
		out = append([]byte(nil), out...)
	}

	return out, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
