// package formatter exports run history to CSV and Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/rsc/internal/models"
)

// Format names an export format accepted by [Export].
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

var csvHeaders = []string{
	"run_id", "status", "started_at", "finished_at", "duration_seconds",
	"playlists_scanned", "tracks_collected", "tracks_written", "batches_written", "target_id", "error",
}

// Export renders records in the given format.
func Export(records []models.RunRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportRunsCSV(records)
	case FormatMarkdown:
		return ExportRunsMarkdown(records)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportRunsCSV writes one row per run with a header row.
func ExportRunsCSV(records []models.RunRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.RunID,
			string(rec.Status),
			formatTime(rec.StartedAt),
			formatTime(rec.FinishedAt),
			strconv.FormatFloat(rec.Duration().Seconds(), 'f', 1, 64),
			strconv.Itoa(rec.PlaylistsScanned),
			strconv.Itoa(rec.TracksCollected),
			strconv.Itoa(rec.TracksWritten),
			strconv.Itoa(rec.BatchesWritten),
			rec.TargetID,
			rec.Error,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportRunsMarkdown writes a summary line and a table of runs.
func ExportRunsMarkdown(records []models.RunRecord) ([]byte, error) {
	var buf bytes.Buffer

	succeeded, written := 0, 0
	for _, rec := range records {
		if rec.Status == models.RunStatusSucceeded {
			succeeded++
			written += rec.TracksWritten
		}
	}

	buf.WriteString("# Recent Songs runs\n\n")
	fmt.Fprintf(&buf, "**Runs**: %d (%d succeeded)\n", len(records), succeeded)
	fmt.Fprintf(&buf, "**Songs written**: %d\n\n", written)

	if len(records) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| Started | Status | Playlists | Songs | Batches | Playlist | Error |\n")
	buf.WriteString("|---|---|---:|---:|---:|---|---|\n")
	for _, rec := range records {
		fmt.Fprintf(&buf, "| %s | %s | %d | %d | %d | %s | %s |\n",
			formatTime(rec.StartedAt),
			rec.Status,
			rec.PlaylistsScanned,
			rec.TracksWritten,
			rec.BatchesWritten,
			rec.TargetID,
			escapeCell(rec.Error),
		)
	}

	return buf.Bytes(), nil
}

// WriteExport writes data to path, creating parent directories.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '|':
			buf.WriteString(`\|`)
		case '\n':
			buf.WriteByte(' ')
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
