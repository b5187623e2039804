// Package parser defines the capability shared by every input format decoder
// and the registry that dispatches files to them.
//
// A decoder turns one input file into a signal.Container. The registry picks
// the first registered decoder whose CanHandle accepts the file (specific
// sniffers are registered before generic ones), parses independent files
// concurrently and merges the results in input order.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arloliu/bidsphysio/format"
	"github.com/arloliu/bidsphysio/signal"
)

// Source is one input file loaded in memory.
type Source struct {
	Path string
	Data []byte
}

// ReadSource loads the file at path.
func ReadSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read %q: %w", path, err)
	}

	return Source{Path: path, Data: data}, nil
}

// Ext returns the lower-cased file extension of the source, including the dot.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Path))
}

// Parser decodes one input format.
type Parser interface {
	// Kind identifies the format family.
	Kind() format.Kind
	// CanHandle reports whether the source looks like this format.
	CanHandle(src Source) bool
	// Parse decodes the source into a new container.
	Parse(src Source) (*signal.Container, error)
}

// SingleFileParser is implemented by parsers that accept at most one file
// per run.
type SingleFileParser interface {
	Parser
	SingleFile() bool
}
