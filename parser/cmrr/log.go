package cmrr

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const dataTypeInfo = "ACQUISITION_INFO"

// logFile is one decoded embedded log.
type logFile struct {
	name       string
	version    string
	dataType   string
	sampleTime int64 // ticks per sample, physio logs only

	// physio logs
	channels []*channelData

	// acquisition info log
	volumes []volumeRow
}

type channelData struct {
	name   string
	tics   []int64
	values []float64
}

type volumeRow struct {
	volume int
	slice  int
	start  int64
	echo   int
}

func (l *logFile) isInfo() bool {
	return l.dataType == dataTypeInfo
}

const (
	checkMarkers    = "log-markers"
	checkSampleTime = "sample-time"
)

// parseLog decodes the text of an embedded log. On failure it also returns
// the name of the failing check.
func parseLog(name string, text []byte) (*logFile, string, error) {
	lf := &logFile{name: name}
	header := make(map[string]string)
	byChannel := make(map[string]*channelData)

	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if key, val, ok := strings.Cut(line, "="); ok {
			header[strings.TrimSpace(key)] = strings.TrimSpace(val)
			continue
		}

		fields := strings.Fields(line)
		if !isInteger(fields[0]) {
			continue // column header
		}

		if strings.EqualFold(header["LogDataType"], dataTypeInfo) {
			row, err := parseVolumeRow(fields)
			if err != nil {
				return nil, checkMarkers, fmt.Errorf("%s line %d: %w", name, lineNo, err)
			}
			lf.volumes = append(lf.volumes, row)

			continue
		}

		if len(fields) < 3 {
			return nil, checkMarkers, fmt.Errorf("%s line %d: expected ACQ_TIME_TICS CHANNEL VALUE, got %q", name, lineNo, line)
		}
		tic, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, checkMarkers, fmt.Errorf("%s line %d: tick: %w", name, lineNo, err)
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, checkMarkers, fmt.Errorf("%s line %d: value: %w", name, lineNo, err)
		}

		ch, ok := byChannel[fields[1]]
		if !ok {
			ch = &channelData{name: fields[1]}
			byChannel[fields[1]] = ch
			lf.channels = append(lf.channels, ch)
		}
		ch.tics = append(ch.tics, tic)
		ch.values = append(ch.values, val)
	}
	if err := sc.Err(); err != nil {
		return nil, checkMarkers, fmt.Errorf("%s: %w", name, err)
	}

	lf.version = header["LogVersion"]
	lf.dataType = strings.ToUpper(header["LogDataType"])
	if lf.version == "" || lf.dataType == "" {
		return nil, checkMarkers, fmt.Errorf("%s: missing LogVersion or LogDataType marker, not a CMRR physio log", name)
	}

	if lf.isInfo() {
		if len(lf.volumes) == 0 {
			return nil, checkMarkers, fmt.Errorf("%s: acquisition info log has no volume rows", name)
		}

		return lf, "", nil
	}

	st, err := strconv.ParseInt(header["SampleTime"], 10, 64)
	if err != nil || st <= 0 {
		return nil, checkSampleTime, fmt.Errorf("%s: invalid SampleTime %q", name, header["SampleTime"])
	}
	lf.sampleTime = st
	if len(lf.channels) == 0 {
		return nil, checkMarkers, fmt.Errorf("%s: %s log has no samples", name, lf.dataType)
	}

	return lf, "", nil
}

func parseVolumeRow(fields []string) (volumeRow, error) {
	if len(fields) < 4 {
		return volumeRow{}, fmt.Errorf("expected VOLUME SLICE ACQ_START_TICS ACQ_FINISH_TICS, got %d fields", len(fields))
	}

	nums := make([]int64, 0, 5)
	for _, f := range fields[:min(len(fields), 5)] {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return volumeRow{}, fmt.Errorf("field %q: %w", f, err)
		}
		nums = append(nums, n)
	}

	row := volumeRow{volume: int(nums[0]), slice: int(nums[1]), start: nums[2]}
	if len(nums) == 5 {
		row.echo = int(nums[4])
	}

	return row, nil
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
