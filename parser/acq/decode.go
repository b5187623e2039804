package acq

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/arloliu/bidsphysio/endian"
)

const (
	graphHeaderSize   = 24
	channelHeaderMin  = 108
	channelDividerEnd = 252
	dtypeHeaderSize   = 4
)

// Sample data types.
const (
	typeFloat64 = 1
	typeInt16   = 2
)

type decodeError struct {
	check string
	err   error
}

func (e *decodeError) Error() string { return e.err.Error() }

func failf(check, msg string, args ...any) error {
	return &decodeError{check: check, err: fmt.Errorf(msg, args...)}
}

type channel struct {
	name      string
	units     string
	bufLength int
	scale     float64
	offset    float64
	divider   int
	dtype     int16
	samples   []float64
}

type file struct {
	engine     endian.EndianEngine
	version    int32
	sampleTime float64 // ms per base tick
	channels   []*channel
}

// detectEngine returns the byte order whose version field is supported.
func detectEngine(data []byte) (endian.EndianEngine, bool) {
	for _, engine := range endian.Engines() {
		v := endian.Int32(engine, data[2:6])
		if v >= MinVersion && v <= MaxVersion {
			return engine, true
		}
	}

	return nil, false
}

func decode(data []byte) (*file, error) {
	if len(data) < graphHeaderSize {
		return nil, failf("header", "file is %d bytes, graph header needs %d", len(data), graphHeaderSize)
	}

	engine, ok := detectEngine(data)
	if !ok {
		return nil, failf("magic", "version field %#x is not a supported AcqKnowledge version in either byte order", data[2:6])
	}

	f := &file{
		engine:     engine,
		version:    endian.Int32(engine, data[2:6]),
		sampleTime: endian.Float64(engine, data[16:24]),
	}

	nChannels := int(endian.Int16(engine, data[10:12]))
	if nChannels <= 0 {
		return nil, failf("header", "channel count %d", nChannels)
	}
	if !(f.sampleTime > 0) {
		return nil, failf("header", "sample time %v ms", f.sampleTime)
	}

	off := int(endian.Int32(engine, data[6:10]))
	if off < graphHeaderSize || off > len(data) {
		return nil, failf("header", "graph header length %d outside file of %d bytes", off, len(data))
	}

	for i := range nChannels {
		ch, n, err := decodeChannelHeader(engine, data[off:])
		if err != nil {
			return nil, &decodeError{check: "header", err: fmt.Errorf("channel header %d at offset %d: %w", i, off, err)}
		}
		f.channels = append(f.channels, ch)
		off += n
	}

	if off+4 > len(data) {
		return nil, failf("truncated", "foreign data header at offset %d past end of file", off)
	}
	foreign := int(endian.Int32(engine, data[off:off+4]))
	if foreign < 4 || off+foreign > len(data) {
		return nil, failf("header", "foreign data length %d at offset %d", foreign, off)
	}
	off += foreign

	if off+nChannels*dtypeHeaderSize > len(data) {
		return nil, failf("truncated", "data type headers at offset %d past end of file", off)
	}
	for i, ch := range f.channels {
		h := data[off+i*dtypeHeaderSize:]
		ch.dtype = endian.Int16(engine, h[2:4])
		if ch.dtype != typeFloat64 && ch.dtype != typeInt16 {
			return nil, failf("dtype", "channel %q: unknown data type %d", ch.name, ch.dtype)
		}
	}
	off += nChannels * dtypeHeaderSize

	if err := f.readSamples(data[off:]); err != nil {
		return nil, err
	}

	return f, nil
}

func decodeChannelHeader(engine endian.EndianEngine, b []byte) (*channel, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("past end of file")
	}
	n := int(endian.Int32(engine, b[0:4]))
	if n < channelHeaderMin {
		return nil, 0, fmt.Errorf("length %d below minimum %d", n, channelHeaderMin)
	}
	if n > len(b) {
		return nil, 0, fmt.Errorf("length %d past end of file", n)
	}

	ch := &channel{
		name:      cString(b[6:46]),
		units:     cString(b[68:88]),
		bufLength: int(endian.Int32(engine, b[88:92])),
		scale:     endian.Float64(engine, b[92:100]),
		offset:    endian.Float64(engine, b[100:108]),
		divider:   1,
	}
	if n >= channelDividerEnd {
		if d := int(endian.Int16(engine, b[250:252])); d > 0 {
			ch.divider = d
		}
	}
	if ch.bufLength < 0 {
		return nil, 0, fmt.Errorf("channel %q: negative sample count %d", ch.name, ch.bufLength)
	}

	return ch, n, nil
}

// readSamples de-interleaves the data section. At base tick i channel c
// stores a sample when i is a multiple of its divider, until it holds
// bufLength samples.
func (f *file) readSamples(data []byte) error {
	need := 0
	for _, ch := range f.channels {
		need += ch.bufLength * ch.sampleSize()
		if need > len(data) {
			return failf("truncated", "data section holds %d bytes, channel headers need at least %d", len(data), need)
		}
	}
	for _, ch := range f.channels {
		ch.samples = make([]float64, 0, ch.bufLength)
	}

	off := 0
	for tick := 0; ; tick++ {
		pending := false
		for _, ch := range f.channels {
			if len(ch.samples) >= ch.bufLength {
				continue
			}
			pending = true
			if tick%ch.divider != 0 {
				continue
			}

			switch ch.dtype {
			case typeFloat64:
				ch.samples = append(ch.samples, endian.Float64(f.engine, data[off:off+8]))
				off += 8
			default:
				raw := float64(endian.Int16(f.engine, data[off:off+2]))
				ch.samples = append(ch.samples, raw*ch.scale+ch.offset)
				off += 2
			}
		}
		if !pending {
			return nil
		}
	}
}

func (ch *channel) sampleSize() int {
	if ch.dtype == typeFloat64 {
		return 8
	}

	return 2
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return strings.TrimSpace(string(b))
}
