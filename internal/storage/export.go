package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/pipeline"
)

type ExportData struct {
	Run     *RunMetadata       `json:"run,omitempty"`
	Fields  []string           `json:"fields"`
	Steps   int                `json:"steps"`
	Records []pipeline.Record  `json:"records"`
	Final   map[string]float64 `json:"final,omitempty"`
}

// ExportJSON writes a trace with its metadata as indented JSON.
func ExportJSON(w io.Writer, meta *RunMetadata, records []pipeline.Record) error {
	data := ExportData{
		Run:     meta,
		Fields:  dynamo.FieldNames(),
		Steps:   len(records),
		Records: records,
	}
	if len(records) > 0 {
		data.Final = records[len(records)-1].State.Map()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportJSONFile writes to path, or to stdout when path is "-".
func ExportJSONFile(path string, meta *RunMetadata, records []pipeline.Record) error {
	if path == "-" {
		return ExportJSON(os.Stdout, meta, records)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ExportJSON(f, meta, records)
}
