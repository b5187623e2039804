package bids

import (
	"bytes"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Sidecar is the JSON document describing one physio table.
type Sidecar struct {
	SamplingFrequency float64  `json:"SamplingFrequency" jsonschema:"required,exclusiveMinimum=0" jsonschema_description:"Sampling rate of every column in Hz"`
	StartTime         float64  `json:"StartTime" jsonschema:"required" jsonschema_description:"Time of the first row in seconds relative to the reference"`
	Columns           []string `json:"Columns" jsonschema:"required,minItems=1" jsonschema_description:"Column names in table order"`

	// Units maps a column name to its metadata object. Entries are emitted
	// as top-level keys named after the column.
	Units map[string]ColumnInfo `json:"-"`
}

// ColumnInfo is the per-column metadata object.
type ColumnInfo struct {
	Units string `json:"Units" jsonschema:"required"`
}

// MarshalJSON writes the fixed fields followed by one object per column with
// known units, in column order.
func (s Sidecar) MarshalJSON() ([]byte, error) {
	type fixed Sidecar
	b, err := json.Marshal(fixed(s))
	if err != nil {
		return nil, err
	}
	if len(s.Units) == 0 {
		return b, nil
	}

	var buf bytes.Buffer
	buf.Write(b[:len(b)-1])
	for _, col := range s.Columns {
		info, ok := s.Units[col]
		if !ok {
			continue
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(info)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Schema returns the JSON Schema of the sidecar document.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&Sidecar{})
	schema.Title = "BIDS physiological recording sidecar"

	column := reflector.Reflect(&ColumnInfo{})
	column.Version = ""
	schema.AdditionalProperties = column

	return json.MarshalIndent(schema, "", "  ")
}
