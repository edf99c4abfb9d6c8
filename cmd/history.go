package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/rsc/internal/formatter"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/repositories"
	"github.com/desertthunder/rsc/internal/shared"
	"github.com/desertthunder/rsc/internal/tasks"
	"github.com/desertthunder/rsc/internal/ui"
	"github.com/urfave/cli/v3"
)

// historyEntry is the JSON form of one run.
type historyEntry struct {
	RunID            string    `json:"run_id"`
	Status           string    `json:"status"`
	TargetID         string    `json:"target_id,omitempty"`
	PlaylistsScanned int       `json:"playlists_scanned"`
	TracksCollected  int       `json:"tracks_collected"`
	TracksWritten    int       `json:"tracks_written"`
	BatchesWritten   int       `json:"batches_written"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at,omitzero"`
}

// History prints previous runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}

	records, err := repositories.NewRunRepository(db).List(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		entries := make([]historyEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry{
				RunID:            rec.RunID,
				Status:           string(rec.Status),
				TargetID:         rec.TargetID,
				PlaylistsScanned: rec.PlaylistsScanned,
				TracksCollected:  rec.TracksCollected,
				TracksWritten:    rec.TracksWritten,
				BatchesWritten:   rec.BatchesWritten,
				Error:            rec.Error,
				StartedAt:        rec.StartedAt,
				FinishedAt:       rec.FinishedAt,
			})
		}
		return r.writeJSON(entries, true)
	}

	if format := cmd.String("format"); format != "" {
		data, err := formatter.Export(records, formatter.Format(format))
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		if path := cmd.String("output"); path != "" {
			if err := formatter.WriteExport(path, data); err != nil {
				return err
			}
			r.logger.Info("history exported", "path", path, "runs", len(records))
			return r.writePlain("✓ Exported %d runs to %s\n", len(records), path)
		}
		return r.writePlain("%s", data)
	}

	if len(records) == 0 {
		return r.writePlain("No runs yet. Start one with `rsc run`.\n")
	}

	return r.writePlain("%s\n", renderTable(
		[]string{"Started", "Status", "Playlists", "Songs", "Batches", "Duration", "Playlist ID", "Error"},
		historyRows(records),
		2, 3, 4,
	))
}

func historyRows(records []models.RunRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		duration := "-"
		if d := rec.Duration(); d > 0 {
			duration = tasks.ReadableDuration(d)
		}
		rows = append(rows, []string{
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			string(rec.Status),
			strconv.Itoa(rec.PlaylistsScanned),
			strconv.Itoa(rec.TracksWritten),
			strconv.Itoa(rec.BatchesWritten),
			duration,
			rec.TargetID,
			truncate(rec.Error, 40),
		})
	}
	return rows
}

// Options lists the filter toggles, their flags, and their defaults.
func (r *Runner) Options(ctx context.Context, cmd *cli.Command) error {
	defaults := models.DefaultFilterOptions()
	rows := [][]string{}
	for _, key := range models.OptionKeys() {
		on, _ := defaults.Get(key)
		rows = append(rows, []string{key, "--" + optionFlag(key), strconv.FormatBool(on), ui.OptionLabel(key)})
	}
	return r.writePlain("%s\n", renderTable([]string{"Option", "Flag", "Default", "Description"}, rows))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
