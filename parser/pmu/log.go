package pmu

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/bidsphysio/config"
)

// Stream markers.
const (
	markerBlockStart = "5002"
	markerBlockEnd   = "6002"
	markerEnd        = "5003"

	triggerOn  = 5000
	triggerOff = 6000
)

// footer holds the MDH clock times, in ms since midnight. The MPCU times
// next to them are not used.
type footer struct {
	mdhStart, mdhStop int64
	hasStart, hasStop bool
}

func (f footer) hasMDH() bool {
	return f.hasStart && f.hasStop
}

// pmuLog is a tokenized PMU log.
type pmuLog struct {
	// values holds the tokens outside comment blocks, up to the end marker.
	values []string
	// after[i] is the number of comment blocks closed before values[i].
	after  []int
	blocks [][]string
	footer footer
}

// scan tokenizes data into values, comment blocks and the footer.
func scan(data []byte) (*pmuLog, error) {
	lg := &pmuLog{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	ended := false
	var block []string
	inBlock := false
	for sc.Scan() {
		line := sc.Text()
		if ended {
			lg.footer.parseLine(line)
			continue
		}

		for _, tok := range strings.Fields(line) {
			if ended {
				break
			}
			switch {
			case inBlock && tok == markerBlockEnd:
				lg.blocks = append(lg.blocks, block)
				block, inBlock = nil, false
			case inBlock:
				block = append(block, tok)
			case tok == markerBlockStart:
				inBlock = true
			case tok == markerEnd:
				ended = true
			default:
				lg.values = append(lg.values, tok)
				lg.after = append(lg.after, len(lg.blocks))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if inBlock {
		return nil, errors.New("unterminated comment block")
	}
	if !ended {
		return nil, errors.New("end marker 5003 not found")
	}

	return lg, nil
}

func (f *footer) parseLine(line string) {
	fields := strings.Fields(line)
	for i := 0; i+1 < len(fields); i++ {
		v, err := strconv.ParseInt(fields[i+1], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[i], ":") {
		case "LogStartMDHTime":
			f.mdhStart, f.hasStart = v, true
		case "LogStopMDHTime":
			f.mdhStop, f.hasStop = v, true
		}
	}
}

// marked returns the modality named by the first comment block token
// starting with marker.
func (lg *pmuLog) marked(marker string) (string, bool) {
	for _, b := range lg.blocks {
		for _, tok := range b {
			if rest, ok := strings.CutPrefix(tok, marker); ok {
				return strings.ToUpper(strings.TrimRight(rest, ".,;:")), true
			}
		}
	}

	return "", false
}

// samplesFor returns the sample tokens according to the generation layout.
func (lg *pmuLog) samplesFor(gen config.Generation) []string {
	if gen.SamplesAfterBlock > 0 {
		for i, n := range lg.after {
			if n >= gen.SamplesAfterBlock {
				return lg.values[i:]
			}
		}

		return nil
	}

	if gen.HeaderValues >= len(lg.values) {
		return nil
	}

	return lg.values[gen.HeaderValues:]
}

// decodeSamples converts tokens to samples, turning trigger markers into NaN.
// measured counts the samples that are not markers.
func decodeSamples(tokens []string) ([]float64, int, error) {
	samples := make([]float64, 0, len(tokens))
	measured := 0
	for i, tok := range tokens {
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("sample %d: %q is not an integer", i, tok)
		}
		if v == triggerOn || v == triggerOff {
			samples = append(samples, math.NaN())
			continue
		}
		samples = append(samples, float64(v))
		measured++
	}

	return samples, measured, nil
}
