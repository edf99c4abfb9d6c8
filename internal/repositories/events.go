package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
)

// EventRepository appends run-start usage events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// RecordEvent stores one event. A missing id or timestamp is filled in.
func (r *EventRepository) RecordEvent(ctx context.Context, event models.RunEvent) error {
	if event.RunID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = shared.GenerateID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	query := `
		INSERT INTO events (id, run_id, user_id, client_info, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.RunID, event.UserID, event.ClientInfo, event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListByRun returns the events of one run in insertion order.
func (r *EventRepository) ListByRun(ctx context.Context, runID string) ([]models.RunEvent, error) {
	query := `
		SELECT id, run_id, user_id, client_info, created_at
		FROM events
		WHERE run_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.RunEvent
	for rows.Next() {
		var e models.RunEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.UserID, &e.ClientInfo, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}
