package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as a simple tab-separated table.
// It produces plain text output suitable for scripting and piping.
// No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := tw.Write([]byte("ID\tMODE\tTITLE\tURL\tSAVED\n")); err != nil {
		return err
	}

	for _, row := range r.Rows {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
			row.ID, row.Mode, row.Title, row.URL, row.SavedHuman)
		if _, err := tw.Write([]byte(line)); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
