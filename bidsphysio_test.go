package bidsphysio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bidsphysio/bids"
	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/endian"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/group"
	"github.com/arloliu/bidsphysio/parser/cmrr"
)

func writePMU(t *testing.T, dir, name string, n int, start, stop int64) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("1 2 40 280")
	for i := range n {
		fmt.Fprintf(&b, " %d", 2048+i%100)
	}
	fmt.Fprintf(&b, " 5003\nLogStartMDHTime:  %d\nLogStopMDHTime:  %d\n", start, stop)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return path
}

func readSidecar(t *testing.T, path string) map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))

	return meta
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func TestConvert_PMUTwoGroups(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 1000, 36000000, 36019980)
	resp := writePMU(t, dir, "run.resp", 500, 36000000, 36019960)
	out := filepath.Join(dir, "out")

	res, err := Convert([]string{puls, resp}, out)
	require.NoError(t, err)
	require.Equal(t, out, res.Prefix)
	require.Len(t, res.Groups, 2)
	require.Equal(t, []string{
		out + "_recording-cardiac_physio.json",
		out + "_recording-cardiac_physio.tsv.gz",
		out + "_recording-respiratory_physio.json",
		out + "_recording-respiratory_physio.tsv.gz",
	}, res.Paths)

	cardiac := readSidecar(t, res.Paths[0])
	require.Equal(t, 50.0, cardiac["SamplingFrequency"])
	require.Equal(t, []any{"cardiac"}, cardiac["Columns"])

	respiratory := readSidecar(t, res.Paths[2])
	require.Equal(t, 25.0, respiratory["SamplingFrequency"])
	require.Equal(t, []any{"respiratory"}, respiratory["Columns"])
}

func TestConvert_RepeatedModalityAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	run1 := writePMU(t, dir, "run1.puls", 1000, 36000000, 36019980)
	run2 := writePMU(t, dir, "run2.puls", 1000, 36100000, 36119980)
	out := filepath.Join(dir, "out")

	res, err := Convert([]string{run1, run2}, out)
	require.NoError(t, err)
	require.Equal(t, []string{"cardiac", "cardiac2"}, res.Container.Names())
	require.Len(t, res.Groups, 2)
	require.Equal(t, []string{
		out + "_recording-cardiac_physio.json",
		out + "_recording-cardiac_physio.tsv.gz",
		out + "_recording-cardiac2_physio.json",
		out + "_recording-cardiac2_physio.tsv.gz",
	}, res.Paths)

	second := readSidecar(t, res.Paths[2])
	require.Equal(t, []any{"cardiac2"}, second["Columns"])
	require.InDelta(t, 36100.0, second["StartTime"], 1e-9)
}

func TestConvert_ReferenceTimeAndCompression(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 1000, 36000000, 36019980)

	res, err := Convert([]string{puls}, filepath.Join(dir, "sub-01_task-rest_bold.nii.gz"),
		WithReferenceTime(35999.5),
		WithCompression(format.CompressionZstd),
	)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "sub-01_task-rest_physio.json"),
		filepath.Join(dir, "sub-01_task-rest_physio.tsv.zst"),
	}, res.Paths)

	meta := readSidecar(t, res.Paths[0])
	require.InDelta(t, 0.5, meta["StartTime"], 1e-9)
}

// cmrrChunk lays out one embedded CMRR log in a rows*1024 byte chunk.
func cmrrChunk(name, text string, rows int) []byte {
	engine := endian.GetLittleEndianEngine()

	buf := make([]byte, rows*1024)
	engine.PutUint32(buf[0:4], uint32(len(text)))
	engine.PutUint32(buf[4:8], uint32(len(name)))
	copy(buf[8:], name)
	copy(buf[1024:], text)

	return buf
}

func cmrrLog(dataType string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LogVersion = EJA_1\nLogDataType = %s\nSampleTime = 8\n\nACQ_TIME_TICS CHANNEL VALUE\n", dataType)
	for i := range n {
		fmt.Fprintf(&b, "%d %s %d\n", 100000+i*8, dataType, 1000+i%30)
	}

	return b.String()
}

func TestConvert_CMRRSingleGroup(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	payload := append(cmrrChunk("Physio_PULS.log", cmrrLog("PULS", 200), 8),
		cmrrChunk("Physio_RESP.log", cmrrLog("RESP", 200), 8)...)
	c, err := cmrr.New(cfg).ParsePayload("scan.dcm", payload, 8)
	require.NoError(t, err)
	require.Len(t, c.Warnings(), 1)

	groups, err := group.Build(c, group.WithClassifier(cfg))
	require.NoError(t, err)
	require.Len(t, groups, 1)

	w, err := bids.NewWriter()
	require.NoError(t, err)
	paths, err := w.Write(filepath.Join(dir, "out"), groups)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "out_physio.json"),
		filepath.Join(dir, "out_physio.tsv.gz"),
	}, paths)

	meta := readSidecar(t, paths[0])
	require.Equal(t, []any{"cardiac", "respiratory"}, meta["Columns"])
	require.InDelta(t, 50.0, meta["SamplingFrequency"], 1e-9)
}

func TestConvert_CorruptedAcqKnowledge(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.acq")
	data := make([]byte, 128)
	copy(data[2:6], []byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, os.WriteFile(bad, data, 0o644))
	puls := writePMU(t, dir, "run.puls", 100, 0, 1980)

	_, err := Convert([]string{puls, bad}, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errs.ErrFormat)

	var fe *errs.FormatError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, bad, fe.Path)
	require.Equal(t, "magic", fe.Check)

	require.ElementsMatch(t, []string{"bad.acq", "run.puls"}, listDir(t, dir))
}

func TestConvert_NoInputs(t *testing.T) {
	dir := t.TempDir()

	_, err := Convert(nil, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errs.ErrEmptyContainer)
	require.Empty(t, listDir(t, dir))
}

func TestConvert_MultipleDICOM(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.dcm", "b.dcm"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		inputs = append(inputs, path)
	}

	_, err := Convert(inputs, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errs.ErrMultipleDICOM)
}

func TestConvert_FormatRestriction(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 100, 0, 1980)

	_, err := Convert([]string{puls}, filepath.Join(dir, "out"), WithFormat(format.KindAcq))
	require.ErrorIs(t, err, errs.ErrNoParser)

	_, err = Convert([]string{puls}, filepath.Join(dir, "out"), WithFormat(format.Kind(42)))
	require.Error(t, err)
}

func TestConvert_TriggerAlignmentWithoutTrigger(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 100, 0, 1980)

	_, err := Convert([]string{puls}, filepath.Join(dir, "out"), WithTriggerAlignment())
	require.ErrorIs(t, err, errs.ErrMissingTrigger)
	require.Equal(t, []string{"run.puls"}, listDir(t, dir))
}

func TestConvert_PMUTriggerAlignsAutomatically(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 1000, 36000000, 36019980)
	// 200 Hz trigger log; samples rise past the midpoint at index 50.
	ext := writePMU(t, dir, "run.ext", 400, 36000000, 36001995)
	out := filepath.Join(dir, "out")

	res, err := Convert([]string{puls, ext}, out)
	require.NoError(t, err)
	require.Equal(t, []string{"cardiac", "trigger"}, res.Container.Names())
	require.Len(t, res.Groups, 2)
	for _, g := range res.Groups {
		require.InDelta(t, -0.25, g.StartTime, 1e-9, g.Label)
	}

	cardiac := readSidecar(t, out+"_recording-cardiac_physio.json")
	require.InDelta(t, -0.25, cardiac["StartTime"], 1e-9)
}

func TestConvert_PMUWithoutTriggerKeepsStartTime(t *testing.T) {
	dir := t.TempDir()
	puls := writePMU(t, dir, "run.puls", 1000, 36000000, 36019980)

	res, err := Convert([]string{puls}, filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	require.InDelta(t, 36000.0, res.Groups[0].StartTime, 1e-9)
}

func TestNewParsers(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		family format.Kind
		kinds  []format.Kind
	}{
		{format.KindUnknown, []format.Kind{format.KindCMRR, format.KindPMU, format.KindAcq}},
		{format.KindCMRR, []format.Kind{format.KindCMRR}},
		{format.KindAcq, []format.Kind{format.KindAcq}},
		{format.KindPMU, []format.Kind{format.KindPMU}},
	}
	for _, tt := range tests {
		t.Run(tt.family.String(), func(t *testing.T) {
			parsers, err := NewParsers(cfg, tt.family, ParserOptions{})
			require.NoError(t, err)

			kinds := make([]format.Kind, len(parsers))
			for i, p := range parsers {
				kinds[i] = p.Kind()
			}
			require.Equal(t, tt.kinds, kinds)
		})
	}
}
