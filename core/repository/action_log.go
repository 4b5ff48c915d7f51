// Package repository persists the audit trail in SQLite.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"nfcunha/deckhand/core/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ActionFilter narrows an action log listing. Zero values match everything.
type ActionFilter struct {
	ResourceType string
	ResourceID   string
	ActionType   string
	Limit        int
	Offset       int
}

// ActionLogRepository handles persistence of action logs.
type ActionLogRepository struct {
	db *sql.DB
}

// NewActionLogRepository creates a new action log repository.
func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Create stores an action log. A zero ExecutedAt is set to now.
func (r *ActionLogRepository) Create(entry *models.ActionLog) error {
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}

	result, err := r.db.Exec(`
		INSERT INTO action_logs (
			action_type, resource_type, resource_id, resource_name,
			success, error_message, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ActionType,
		entry.ResourceType,
		entry.ResourceID,
		nullable(entry.ResourceName),
		entry.Success,
		nullable(entry.ErrorMessage),
		entry.ExecutedAt.UTC(),
	)
	if err != nil {
		return err
	}

	entry.ID, err = result.LastInsertId()
	return err
}

// List returns action logs matching filter, newest first.
func (r *ActionLogRepository) List(ctx context.Context, filter ActionFilter) ([]*models.ActionLog, error) {
	var (
		where []string
		args  []any
	)
	if filter.ResourceType != "" {
		where = append(where, "resource_type = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, filter.ActionType)
	}

	query := `
		SELECT id, action_type, resource_type, resource_id, resource_name,
		       success, error_message, executed_at
		FROM action_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY executed_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	return queryAll(ctx, r.db, query, args, func(rows *sql.Rows) (*models.ActionLog, error) {
		entry := &models.ActionLog{}
		var errorMsg, resourceName sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.ActionType,
			&entry.ResourceType,
			&entry.ResourceID,
			&resourceName,
			&entry.Success,
			&errorMsg,
			&entry.ExecutedAt,
		)
		entry.ErrorMessage = errorMsg.String
		entry.ResourceName = resourceName.String
		return entry, err
	})
}

// DeleteOlderThan removes action logs executed before cutoff.
func (r *ActionLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "action_logs", "executed_at", cutoff)
}
