package compress

// ZstdCompressor provides Zstandard compression. The pure Go implementation
// is used unless the binary is built with cgo and the "gozstd" tag.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
