package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/rsc/internal/models"
)

// RunRepository persists run outcomes.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun inserts the record or overwrites the row with the same run id.
func (r *RunRepository) SaveRun(ctx context.Context, record models.RunRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (
			run_id, user_id, status, target_id, playlists_scanned, tracks_collected,
			tracks_written, batches_written, error_message, started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			target_id = excluded.target_id,
			playlists_scanned = excluded.playlists_scanned,
			tracks_collected = excluded.tracks_collected,
			tracks_written = excluded.tracks_written,
			batches_written = excluded.batches_written,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.RunID, record.UserID, string(record.Status), nullString(record.TargetID),
		record.PlaylistsScanned, record.TracksCollected, record.TracksWritten, record.BatchesWritten,
		nullString(record.Error), record.StartedAt.UTC(), nullTime(record.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get retrieves a run by id
func (r *RunRepository) Get(ctx context.Context, runID string) (models.RunRecord, error) {
	query := runSelect + ` WHERE run_id = ?`

	record, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// List returns the most recent runs first. A limit of zero or less returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := runSelect + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

const runSelect = `
	SELECT run_id, user_id, status, target_id, playlists_scanned, tracks_collected,
		tracks_written, batches_written, error_message, started_at, finished_at
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (models.RunRecord, error) {
	var (
		record   models.RunRecord
		status   string
		targetID sql.NullString
		errMsg   sql.NullString
		finished sql.NullTime
	)

	err := s.Scan(
		&record.RunID, &record.UserID, &status, &targetID,
		&record.PlaylistsScanned, &record.TracksCollected, &record.TracksWritten, &record.BatchesWritten,
		&errMsg, &record.StartedAt, &finished,
	)
	if err != nil {
		return models.RunRecord{}, err
	}

	record.Status = models.RunStatus(status)
	record.TargetID = targetID.String
	record.Error = errMsg.String
	if finished.Valid {
		record.FinishedAt = finished.Time
	}
	return record, nil
}
