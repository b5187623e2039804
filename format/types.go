package format

import "strings"

type (
	Kind            uint8
	CompressionType uint8
)

const (
	KindUnknown Kind = 0x0 // KindUnknown is an undetected input format.
	KindCMRR    Kind = 0x1 // KindCMRR is a CMRR physio log embedded in a DICOM object.
	KindAcq     Kind = 0x2 // KindAcq is an AcqKnowledge native file.
	KindPMU     Kind = 0x3 // KindPMU is a Siemens PMU log file.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
	CompressionGzip CompressionType = 0x5 // CompressionGzip represents gzip, the BIDS default.
)

func (k Kind) String() string {
	switch k {
	case KindCMRR:
		return "cmrr"
	case KindAcq:
		return "acq"
	case KindPMU:
		return "pmu"
	default:
		return "unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	case CompressionGzip:
		return "Gzip"
	default:
		return "Unknown"
	}
}

// Extension returns the file suffix appended to ".tsv" for the compression type.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionS2:
		return ".s2"
	case CompressionLZ4:
		return ".lz4"
	case CompressionGzip:
		return ".gz"
	default:
		return ""
	}
}

// ParseCompression maps a user-facing name ("gzip", "zstd", "s2", "lz4",
// "none") to a CompressionType. The boolean is false for unknown names.
func ParseCompression(name string) (CompressionType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gz", "gzip":
		return CompressionGzip, true
	case "zst", "zstd":
		return CompressionZstd, true
	case "s2":
		return CompressionS2, true
	case "lz4":
		return CompressionLZ4, true
	case "none":
		return CompressionNone, true
	default:
		return 0, false
	}
}
