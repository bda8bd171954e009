package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing listing suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with listing metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var parts []string

	kind := "saved pages"
	if r.Recent {
		kind = "recently opened"
	}
	parts = append(parts, LabelStyle.Render("Listing:")+" "+ValueStyle.Render(kind))

	if r.ManifestPath != "" {
		parts = append(parts, LabelStyle.Render("Manifest:")+" "+MutedStyle.Render(r.ManifestPath))
	}

	return HeaderBox.Render(strings.Join(parts, "  "))
}

// formatTable builds one block per entry: title line, then url/meta line.
func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Rows) == 0 {
		return MutedStyle.Render("  No saved pages\n")
	}

	var sb strings.Builder
	for _, row := range r.Rows {
		marker := OnlineStyle.Render("◦")
		if row.Mode == types.ModeOffline {
			marker = OfflineStyle.Render("●")
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			marker, TitleStyle.Render(row.Title), MutedStyle.Render(row.ID)))

		meta := []string{URLStyle.Render(row.URL), MutedStyle.Render(row.SavedHuman)}
		if row.ScrollY > 0 {
			meta = append(meta, MutedStyle.Render(fmt.Sprintf("scroll %.0f", row.ScrollY)))
		}
		if row.Opened {
			meta = append(meta, OfflineStyle.Render("opened"))
		}
		sb.WriteString("    " + strings.Join(meta, "  ") + "\n")
	}
	return sb.String()
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	parts = append(parts, LabelStyle.Render("Entries:")+" "+ValueStyle.Render(fmt.Sprintf("%d", len(r.Rows))))
	parts = append(parts, LabelStyle.Render("Offline:")+" "+ValueStyle.Render(fmt.Sprintf("%d", r.Offline())))
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
