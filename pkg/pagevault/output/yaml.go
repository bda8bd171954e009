package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Rows []Row    `yaml:"rows"`
	Meta yamlMeta `yaml:"meta"`
}

// yamlMeta represents listing metadata in YAML output.
type yamlMeta struct {
	ManifestPath string   `yaml:"manifest_path,omitempty"`
	Recent       bool     `yaml:"recent"`
	Total        int      `yaml:"total"`
	Offline      int      `yaml:"offline"`
	Warnings     []string `yaml:"warnings,omitempty"`
}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	out := yamlOutput{
		Rows: r.Rows,
		Meta: yamlMeta{
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

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
