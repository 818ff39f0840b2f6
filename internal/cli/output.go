// Package cli formats archive records, search results and save reports for
// the historias command line.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/models"
	"github.com/hyperjump/historias/internal/workflow"
	"github.com/hyperjump/historias/pkg/utils"
)

// OutputFormat is the format of listing output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one line per record.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat accepts "text", "json" and "compact".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputCompact:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, json or compact)", s)
}

// WriteRecords writes a record listing to w.
func WriteRecords(w io.Writer, records []*models.Record, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if records == nil {
			records = []*models.Record{}
		}
		return writeJSON(w, records)
	case OutputCompact:
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.CreatedAt, recordKey(rec), rec.Platform, rec.DisplayTitle())
		}
		return nil
	default:
		fmt.Fprintf(w, "\n%d historias\n\n", len(records))
		for i, rec := range records {
			writeOneRecord(w, i+1, rec)
		}
		return nil
	}
}

func writeOneRecord(w io.Writer, n int, rec *models.Record) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s\n", n, rec.DisplayTitle())
	fmt.Fprintf(w, "   %s | %s | %s\n", orDash(string(rec.Platform)), orDash(rec.Tone), orDash(rec.CreatedAt.String()))
	if key := recordKey(rec); key != "" {
		fmt.Fprintf(w, "   %s\n", key)
	}
	if rec.Unextracted {
		fmt.Fprintln(w, "   (texto PDF no extraído)")
	}
	if rec.Content.Hook != "" {
		fmt.Fprintf(w, "\n   %s\n", utils.Truncate(rec.Content.Hook, 200))
	}
	fmt.Fprintln(w)
}

// WriteSearchResults writes search hits to w.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, hit := range resp.Hits {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", hit.Score, hit.Key, hit.Record.DisplayTitle())
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", resp.Total, resp.Query, resp.QueryTime)
		for i, hit := range resp.Hits {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "%d. %s | Score: %.4f\n", i+1, hit.Record.DisplayTitle(), hit.Score)
			fmt.Fprintf(w, "   %s\n", hit.Key)
			if hit.Snippet != "" {
				fmt.Fprintf(w, "\n   %s\n", hit.Snippet)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// WriteSaveReport summarises a save.
func WriteSaveReport(w io.Writer, report *workflow.SaveReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	for _, p := range report.Paths {
		fmt.Fprintf(w, "Guardado: %s\n", p)
	}
	if report.ImageURL != "" {
		fmt.Fprintf(w, "Imagen: %s\n", report.ImageURL)
	}
	if report.RemoteID != "" {
		fmt.Fprintf(w, "ID remoto: %s\n", report.RemoteID)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "Aviso: %s\n", warning)
	}
	return nil
}

// RenderRecord renders rec as terminal markdown. style is a glamour standard
// style name ("dark", "light", "notty") or "auto".
func RenderRecord(w io.Writer, rec *models.Record, style string, width int) error {
	var md bytes.Buffer
	if err := (archive.MarkdownCodec{}).Encode(&md, rec); err != nil {
		return err
	}
	if len(rec.Content.Hashtags) > 0 {
		fmt.Fprintf(&md, "\n%s\n", strings.Join(rec.Content.Hashtags, " "))
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(md.String())
	if err != nil {
		return fmt.Errorf("render story: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func recordKey(rec *models.Record) string {
	if rec.Filename != "" {
		return rec.Filename
	}
	return rec.ID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
