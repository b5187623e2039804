package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/arloliu/bidsphysio/format"
)

const envConfigPath = "BIDSPHYSIO_CONFIG"

type Config struct {
	Inputs      []string
	BIDSPrefix  string
	Verbose     bool
	ConfigPath  string
	Compression string
	Format      format.Kind

	StartTime        float64
	StartTimeSet     bool
	ReferenceTime    float64
	ReferenceTimeSet bool
	AlignTrigger     bool
}

func (c Config) Validate() error {
	var errList []error

	if len(c.Inputs) == 0 {
		errList = append(errList, errors.New("missing -i/--infiles"))
	}
	if c.BIDSPrefix == "" {
		errList = append(errList, errors.New("missing -b/--bidsprefix"))
	}
	if _, ok := format.ParseCompression(c.Compression); !ok {
		errList = append(errList, fmt.Errorf("unknown --compression %q", c.Compression))
	}
	if c.StartTimeSet && (math.IsNaN(c.StartTime) || math.IsInf(c.StartTime, 0)) {
		errList = append(errList, fmt.Errorf("invalid --start-time %v", c.StartTime))
	}
	if c.ReferenceTimeSet && !(c.ReferenceTime >= 0 && c.ReferenceTime < 86400) {
		errList = append(errList, fmt.Errorf("--reference-time must be seconds since midnight, got %v", c.ReferenceTime))
	}
	if c.StartTimeSet && c.Format != format.KindUnknown && c.Format != format.KindAcq {
		errList = append(errList, errors.New("--start-time applies to AcqKnowledge input only"))
	}
	if c.ReferenceTimeSet && c.Format != format.KindUnknown && c.Format != format.KindPMU {
		errList = append(errList, errors.New("--reference-time applies to PMU input only"))
	}

	return errors.Join(errList...)
}

func defaultConfig() Config {
	return Config{
		ConfigPath:  getEnv(envConfigPath, ""),
		Compression: "gzip",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}
