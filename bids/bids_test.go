package bids

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bidsphysio/compress"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/group"
	"github.com/arloliu/bidsphysio/signal"
)

func mustSignal(t *testing.T, name string, rate, start float64, samples []float64, opts ...signal.Option) *signal.Signal {
	t.Helper()

	s, err := signal.New(name, rate, start, samples, opts...)
	require.NoError(t, err)

	return s
}

func newWriter(t *testing.T, opts ...Option) *Writer {
	t.Helper()

	w, err := NewWriter(opts...)
	require.NoError(t, err)

	return w
}

func decompress(t *testing.T, ct format.CompressionType, data []byte) string {
	t.Helper()

	codec, err := compress.CreateCodec(ct)
	require.NoError(t, err)
	raw, err := codec.Decompress(data)
	require.NoError(t, err)

	return string(raw)
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sub-01/func/sub-01_task-rest_bold.nii.gz", "sub-01/func/sub-01_task-rest"},
		{"sub-01_task-rest_bold.nii", "sub-01_task-rest"},
		{"sub-01_task-rest_bold", "sub-01_task-rest"},
		{"sub-01_task-rest_physio", "sub-01_task-rest"},
		{"sub-01_task-rest", "sub-01_task-rest"},
		{"out", "out"},
		{"sub-01_bold_task", "sub-01_bold_task"},
		{"x_physio_bold.nii.gz", "x"},
		{"x.gz.gz", "x.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Prefix(tt.in))
		})
	}
}

func TestWriter_Names(t *testing.T) {
	tests := []struct {
		ct      format.CompressionType
		label   string
		sidecar string
		table   string
	}{
		{format.CompressionGzip, "", "out_physio.json", "out_physio.tsv.gz"},
		{format.CompressionGzip, "cardiac", "out_recording-cardiac_physio.json", "out_recording-cardiac_physio.tsv.gz"},
		{format.CompressionZstd, "", "out_physio.json", "out_physio.tsv.zst"},
		{format.CompressionS2, "resp", "out_recording-resp_physio.json", "out_recording-resp_physio.tsv.s2"},
		{format.CompressionLZ4, "", "out_physio.json", "out_physio.tsv.lz4"},
		{format.CompressionNone, "", "out_physio.json", "out_physio.tsv"},
	}
	for _, tt := range tests {
		t.Run(tt.ct.String()+"/"+tt.label, func(t *testing.T) {
			w := newWriter(t, WithCompression(tt.ct))
			sidecar, table := w.Names("out", tt.label)
			require.Equal(t, tt.sidecar, sidecar)
			require.Equal(t, tt.table, table)
		})
	}
}

func TestWriter_InvalidCompression(t *testing.T) {
	_, err := NewWriter(WithCompression(format.CompressionType(99)))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestWriter_RenderSingleGroup(t *testing.T) {
	w := newWriter(t)
	g := &group.Group{
		SamplingRate: 50,
		StartTime:    -0.25,
		Signals: []*signal.Signal{
			mustSignal(t, "cardiac", 50, -0.25, []float64{1, 2.5, math.NaN()}, signal.WithUnits("mV")),
			mustSignal(t, "respiratory", 50, -0.25, []float64{0.1, -3, 1e-7}),
		},
	}

	files, err := w.Render("out", []*group.Group{g})
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "out_physio.json", files[0].Path)
	require.Equal(t, "out_physio.tsv.gz", files[1].Path)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(files[0].Data, &meta))
	require.Equal(t, 50.0, meta["SamplingFrequency"])
	require.Equal(t, -0.25, meta["StartTime"])
	require.Equal(t, []any{"cardiac", "respiratory"}, meta["Columns"])
	require.Equal(t, map[string]any{"Units": "mV"}, meta["cardiac"])
	require.NotContains(t, meta, "respiratory")

	require.Equal(t, "1\t0.1\n2.5\t-3\nn/a\t1e-07\n", decompress(t, format.CompressionGzip, files[1].Data))
}

func TestWriter_RenderLabelledGroups(t *testing.T) {
	w := newWriter(t)
	groups := []*group.Group{
		{Label: "cardiac", SamplingRate: 50, Signals: []*signal.Signal{mustSignal(t, "cardiac", 50, 0, []float64{1, 2})}},
		{Label: "respiratory", SamplingRate: 25, Signals: []*signal.Signal{mustSignal(t, "respiratory", 25, 0, []float64{3})}},
	}

	files, err := w.Render("sub-01_task-rest", groups)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	require.Equal(t, []string{
		"sub-01_task-rest_recording-cardiac_physio.json",
		"sub-01_task-rest_recording-cardiac_physio.tsv.gz",
		"sub-01_task-rest_recording-respiratory_physio.json",
		"sub-01_task-rest_recording-respiratory_physio.tsv.gz",
	}, paths)
}

func TestWriter_RenderCodecs(t *testing.T) {
	g := &group.Group{
		SamplingRate: 10,
		Signals:      []*signal.Signal{mustSignal(t, "cardiac", 10, 0, []float64{1, 2, 3, 4})},
	}
	for _, ct := range []format.CompressionType{
		format.CompressionNone, format.CompressionGzip, format.CompressionZstd,
		format.CompressionS2, format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			w := newWriter(t, WithCompression(ct))
			require.Equal(t, ct, w.Compression())

			files, err := w.Render("out", []*group.Group{g})
			require.NoError(t, err)
			require.Equal(t, "1\n2\n3\n4\n", decompress(t, ct, files[1].Data))
		})
	}
}

func TestWriter_RenderErrors(t *testing.T) {
	w := newWriter(t)
	g := &group.Group{SamplingRate: 1, Signals: []*signal.Signal{mustSignal(t, "x", 1, 0, []float64{1})}}

	_, err := w.Render("", []*group.Group{g})
	require.ErrorIs(t, err, errs.ErrEmptyPrefix)

	_, err = w.Render("out", nil)
	require.ErrorIs(t, err, errs.ErrEmptyContainer)
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "sub-01", "func", "sub-01_task-rest")
	w := newWriter(t, WithFileMode(0o600))
	g := &group.Group{
		SamplingRate: 100,
		Signals:      []*signal.Signal{mustSignal(t, "cardiac", 100, 0, []float64{1, 2})},
	}

	paths, err := w.Write(prefix, []*group.Group{g})
	require.NoError(t, err)
	require.Equal(t, []string{prefix + "_physio.json", prefix + "_physio.tsv.gz"}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	require.Equal(t, "1\n2\n", decompress(t, format.CompressionGzip, data))

	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(prefix))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.Contains(e.Name(), ".tmp-"), "temporary file left behind: %s", e.Name())
	}
}

func TestWriter_WriteNothingOnRenderFailure(t *testing.T) {
	dir := t.TempDir()
	w := newWriter(t)

	_, err := w.Write(filepath.Join(dir, "out"), nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSidecar_MarshalJSONColumnOrder(t *testing.T) {
	sc := Sidecar{
		SamplingFrequency: 400,
		Columns:           []string{"ecg2", "ecg1"},
		Units:             map[string]ColumnInfo{"ecg1": {Units: "mV"}, "ecg2": {Units: "uV"}},
	}

	b, err := json.Marshal(sc)
	require.NoError(t, err)
	require.Equal(t,
		`{"SamplingFrequency":400,"StartTime":0,"Columns":["ecg2","ecg1"],"ecg2":{"Units":"uV"},"ecg1":{"Units":"mV"}}`,
		string(b))
}

func TestSchema(t *testing.T) {
	b, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(b, &schema))
	require.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "SamplingFrequency")
	require.Contains(t, props, "StartTime")
	require.Contains(t, props, "Columns")
	require.NotContains(t, props, "Units")
	require.ElementsMatch(t, []any{"SamplingFrequency", "StartTime", "Columns"}, schema["required"])

	column, ok := schema["additionalProperties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, column["properties"], "Units")
}
