package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/stretchr/testify/require"
)

func sampleTable() []byte {
	var b strings.Builder
	for i := range 2000 {
		b.WriteString("2048\t")
		b.WriteString(strings.Repeat("1", i%7))
		b.WriteString("\tn/a\n")
	}

	return []byte(b.String())
}

func TestCreateCodec_RoundTrip(t *testing.T) {
	data := sampleTable()

	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionGzip,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CreateCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)
			if ct != format.CompressionNone {
				require.Less(t, len(compressed), len(data))
			}

			out, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, data, out)
		})
	}
}

func TestCreateCodec_Invalid(t *testing.T) {
	_, err := CreateCodec(format.CompressionType(0x7f))
	require.ErrorIs(t, err, errs.ErrInvalidCompression)
}

func TestGzip_Magic(t *testing.T) {
	compressed, err := NewGzipCompressor().Compress([]byte("1\t2\n"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(compressed, []byte{0x1f, 0x8b}), "gzip magic")

	_, err = NewGzipCompressor().Decompress([]byte("not gzip"))
	require.Error(t, err)
}

func TestGzip_Level(t *testing.T) {
	data := sampleTable()
	fast, err := NewGzipCompressorLevel(1).Compress(data)
	require.NoError(t, err)

	out, err := NewGzipCompressor().Decompress(fast)
	require.NoError(t, err)
	require.Equal(t, data, out)

	_, err = NewGzipCompressorLevel(42).Compress(data)
	require.Error(t, err)
}

func TestDecompress_Empty(t *testing.T) {
	for _, codec := range []Codec{NewGzipCompressor(), NewZstdCompressor(), NewS2Compressor(), NewLZ4Compressor()} {
		out, err := codec.Decompress(nil)
		require.NoError(t, err)
		require.Nil(t, out)
	}
}

func TestDecompress_Corrupted(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 16)
	for _, codec := range []Codec{NewGzipCompressor(), NewZstdCompressor(), NewS2Compressor(), NewLZ4Compressor()} {
		_, err := codec.Decompress(garbage)
		require.Error(t, err)
	}
}
