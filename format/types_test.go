package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	require.Equal(t, "cmrr", KindCMRR.String())
	require.Equal(t, "acq", KindAcq.String())
	require.Equal(t, "pmu", KindPMU.String())
	require.Equal(t, "unknown", KindUnknown.String())
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want CompressionType
		ext  string
		ok   bool
	}{
		{"", CompressionGzip, ".gz", true},
		{"GZIP", CompressionGzip, ".gz", true},
		{"zstd", CompressionZstd, ".zst", true},
		{"s2", CompressionS2, ".s2", true},
		{"lz4", CompressionLZ4, ".lz4", true},
		{"none", CompressionNone, "", true},
		{"brotli", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCompression(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.ext, got.Extension())
		})
	}
}
