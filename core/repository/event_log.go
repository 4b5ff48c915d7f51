package repository

import (
	"context"
	"database/sql"
	"time"

	"nfcunha/deckhand/core/models"
)

// EventLogRepository handles persistence of system event logs.
type EventLogRepository struct {
	db *sql.DB
}

// NewEventLogRepository creates a new event log repository.
func NewEventLogRepository(db *sql.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Create stores an event log. A zero CreatedAt is set to now.
func (r *EventLogRepository) Create(entry *models.EventLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(`
		INSERT INTO event_logs (event_type, level, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.EventType,
		entry.Level,
		entry.Message,
		nullable(entry.Metadata),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	entry.ID, err = result.LastInsertId()
	return err
}

// List returns recent event logs, newest first. An empty eventType matches every type.
func (r *EventLogRepository) List(ctx context.Context, eventType string, limit int) ([]*models.EventLog, error) {
	query := `SELECT id, event_type, level, message, metadata, created_at FROM event_logs`
	var args []any
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(limit))

	return queryAll(ctx, r.db, query, args, func(rows *sql.Rows) (*models.EventLog, error) {
		entry := &models.EventLog{}
		var metadata sql.NullString
		err := rows.Scan(&entry.ID, &entry.EventType, &entry.Level, &entry.Message, &metadata, &entry.CreatedAt)
		entry.Metadata = metadata.String
		return entry, err
	})
}

// DeleteOlderThan removes event logs created before cutoff.
func (r *EventLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "event_logs", "created_at", cutoff)
}
