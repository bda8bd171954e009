package output

import (
	"bytes"
)

// PathsFormatter formats output as one payload file path per line.
// Online bookmarks have no payload and are skipped. The result is a
// simple list of paths suitable for piping to other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, row := range r.Rows {
		if row.FilePath == "" {
			continue
		}
		w.WriteString(row.FilePath)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

// Ensure PathsFormatter implements Formatter.
var _ Formatter = (*PathsFormatter)(nil)
