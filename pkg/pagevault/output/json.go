package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter formats output as a single indented JSON object.
// It produces a complete JSON document with the display rows and listing
// metadata, for consumption by scripts and other tools.
type JSONFormatter struct{}

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Rows []Row    `json:"rows"`
	Meta jsonMeta `json:"meta"`
}

// jsonMeta represents listing metadata in JSON output.
type jsonMeta struct {
	ManifestPath string   `json:"manifest_path,omitempty"`
	Recent       bool     `json:"recent"`
	Total        int      `json:"total"`
	Offline      int      `json:"offline"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	out := jsonOutput{
		Rows: r.Rows,
		Meta: jsonMeta{
			ManifestPath: r.ManifestPath,
			Recent:       r.Recent,
			Total:        len(r.Rows),
			Offline:      r.Offline(),
			Warnings:     r.Warnings,
		},
	}
	if out.Rows == nil {
		out.Rows = []Row{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
