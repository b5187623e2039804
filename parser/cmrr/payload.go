package cmrr

import (
	"fmt"

	"github.com/arloliu/bidsphysio/endian"
)

// rowBytes is the width of one row of the embedded payload; the log text of
// every chunk starts after the first row.
const rowBytes = 1024

type embeddedFile struct {
	name string
	text []byte
}

// splitPayload cuts the element payload into its embedded files.
//
// Every chunk spans rows*rowBytes bytes and starts with a little-endian
// uint32 data length, a uint32 file name length and the file name; the log
// text starts at byte rowBytes.
func splitPayload(payload []byte, rows int) ([]embeddedFile, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	chunk := len(payload)
	if rows > 0 && len(payload)%(rows*rowBytes) == 0 {
		chunk = rows * rowBytes
	}

	engine := endian.GetLittleEndianEngine()

	var files []embeddedFile
	for off := 0; off < len(payload); off += chunk {
		c := payload[off : off+chunk]
		if len(c) < rowBytes {
			return nil, fmt.Errorf("chunk at offset %d is %d bytes, need at least %d", off, len(c), rowBytes)
		}

		dataLen := int(engine.Uint32(c[0:4]))
		nameLen := int(engine.Uint32(c[4:8]))
		if nameLen > rowBytes-8 {
			return nil, fmt.Errorf("chunk at offset %d: file name length %d exceeds header row", off, nameLen)
		}
		if dataLen > len(c)-rowBytes {
			return nil, fmt.Errorf("chunk at offset %d: data length %d exceeds chunk size %d", off, dataLen, len(c)-rowBytes)
		}

		files = append(files, embeddedFile{
			name: string(c[8 : 8+nameLen]),
			text: c[rowBytes : rowBytes+dataLen],
		})
	}

	return files, nil
}
