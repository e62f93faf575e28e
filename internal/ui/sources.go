package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/docqa/internal/scanner"
)

// SourcesRenderer displays the indexed file records.
type SourcesRenderer struct {
	out    io.Writer
	styles Styles
}

// NewSourcesRenderer creates a sources renderer.
func NewSourcesRenderer(out io.Writer, noColor bool) *SourcesRenderer {
	return &SourcesRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render prints one line per record with a relative modification time.
func (r *SourcesRenderer) Render(records []scanner.FileRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(r.out, r.styles.Warning.Render("No documents indexed."))
		return err
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(fmt.Sprintf("Indexed sources (%d)", len(records))))
	for _, rec := range records {
		modified := rec.LastModified
		if t, err := time.Parse(time.RFC3339, rec.LastModified); err == nil {
			modified = formatTime(t)
		}
		if _, err := fmt.Fprintf(r.out, "  %s  %s\n", rec.Filename, r.styles.Label.Render(modified)); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON outputs the records as the JSON array served by GET /sources.
func (r *SourcesRenderer) RenderJSON(records []scanner.FileRecord) error {
	if records == nil {
		records = []scanner.FileRecord{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
