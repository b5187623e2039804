// Package compress provides the codecs used for the tabular physio file.
//
// BIDS requires gzip (".tsv.gz"); the other codecs exist for consumers that
// archive converted recordings in another container format. Every codec
// produces a self-describing stream that the matching command line tool can
// read (gzip, zstd, s2, lz4 frame format).
//
//	codec, err := compress.CreateCodec(format.CompressionGzip)
//	if err != nil {
//	    return err
//	}
//	compressed, err := codec.Compress(table)
//
// All codecs are stateless values and safe for concurrent use.
package compress
