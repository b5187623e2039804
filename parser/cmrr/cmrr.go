// Package cmrr decodes the physiological logs that CMRR multiband sequences
// embed in a DICOM object.
//
// The DICOM private element (7FE1,1010) holds one or more log files laid out
// in fixed-size chunks. Each log is line oriented text: KEY = VALUE header
// lines followed by tick-stamped data rows. The acquisition info log carries
// the volume timing used as the time reference; PULS, RESP, ECG and EXT logs
// carry the samples.
package cmrr

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/arloliu/bidsphysio/config"
	"github.com/arloliu/bidsphysio/errs"
	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/parser"
	"github.com/arloliu/bidsphysio/signal"
)

var (
	// physioTag is the private element holding the embedded logs.
	physioTag = tag.Tag{Group: 0x7fe1, Element: 0x1010}
	// acquisitionNumberTag gives the number of 1024-byte rows per embedded log.
	acquisitionNumberTag = tag.Tag{Group: 0x0020, Element: 0x0012}
)

// Parser decodes CMRR physio DICOM files.
type Parser struct {
	cfg *config.Config
}

var _ parser.SingleFileParser = (*Parser)(nil)

// New returns a CMRR parser using cfg for timing constants and labels.
func New(cfg *config.Config) *Parser {
	return &Parser{cfg: cfg}
}

func (p *Parser) Kind() format.Kind {
	return format.KindCMRR
}

// SingleFile reports that a run accepts only one CMRR DICOM: a single object
// carries the complete log set.
func (p *Parser) SingleFile() bool {
	return true
}

// CanHandle accepts files with the DICOM preamble magic or a DICOM extension.
func (p *Parser) CanHandle(src parser.Source) bool {
	if len(src.Data) >= 132 && string(src.Data[128:132]) == "DICM" {
		return true
	}
	switch src.Ext() {
	case ".dcm", ".ima":
		return true
	}

	return false
}

// Parse extracts the embedded logs from the DICOM object and decodes them.
func (p *Parser) Parse(src parser.Source) (*signal.Container, error) {
	payload, rows, err := p.extract(src)
	if err != nil {
		return nil, err
	}

	return p.ParsePayload(src.Path, payload, rows)
}

func (p *Parser) extract(src parser.Source) ([]byte, int, error) {
	ds, err := dicom.Parse(bytes.NewReader(src.Data), int64(len(src.Data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, 0, p.formatErr(src.Path, "dicom", "decode DICOM: %w", err)
	}

	elem, err := ds.FindElementByTag(physioTag)
	if err != nil {
		return nil, 0, p.formatErr(src.Path, "physio-tag", "element %s not found: %w", physioTag, err)
	}
	payload, ok := elem.Value.GetValue().([]byte)
	if !ok || len(payload) == 0 {
		return nil, 0, p.formatErr(src.Path, "physio-tag", "element %s holds no binary payload", physioTag)
	}

	rows := 0
	if elem, err := ds.FindElementByTag(acquisitionNumberTag); err == nil {
		rows = intValue(elem.Value.GetValue())
	}

	return payload, rows, nil
}

// intValue reads an IS element, which the DICOM reader may surface either as
// strings or as integers.
func intValue(v any) int {
	switch vals := v.(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0]
		}
	case []string:
		if len(vals) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(vals[0]))
			if err == nil {
				return n
			}
		}
	}

	return 0
}

// ParsePayload decodes the raw content of the (7FE1,1010) element. rows is
// the DICOM AcquisitionNumber; zero or an inconsistent value makes the whole
// payload a single embedded log.
func (p *Parser) ParsePayload(path string, payload []byte, rows int) (*signal.Container, error) {
	files, err := splitPayload(payload, rows)
	if err != nil {
		return nil, p.formatErr(path, "chunk-bounds", "%w", err)
	}

	logs := make([]*logFile, 0, len(files))
	for _, f := range files {
		lf, check, err := parseLog(f.name, f.text)
		if err != nil {
			return nil, p.formatErr(path, check, "%w", err)
		}
		logs = append(logs, lf)
	}

	return p.assemble(path, logs)
}

func (p *Parser) formatErr(path, check, msg string, args ...any) error {
	return errs.NewFormatError(path, format.KindCMRR.String(), check, msg, args...)
}

func (p *Parser) String() string {
	return fmt.Sprintf("cmrr(tick=%gs)", p.cfg.CMRR.TickSeconds)
}
