package repository

import (
	"context"
	"database/sql"
	"time"

	"nfcunha/deckhand/core/models"
)

// HealthCheckLogRepository handles persistence of health check results.
type HealthCheckLogRepository struct {
	db *sql.DB
}

// NewHealthCheckLogRepository creates a new health check log repository.
func NewHealthCheckLogRepository(db *sql.DB) *HealthCheckLogRepository {
	return &HealthCheckLogRepository{db: db}
}

// Create stores a health check result. A zero CheckedAt is set to now.
func (r *HealthCheckLogRepository) Create(entry *models.HealthCheckLog) error {
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now()
	}

	result, err := r.db.Exec(`
		INSERT INTO health_check_logs (
			container_id, container_name, status,
			resource_cpu, resource_memory, resource_memory_limit,
			resource_network_rx, resource_network_tx,
			error_message, checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ContainerID,
		entry.ContainerName,
		entry.Status,
		entry.ResourceCPU,
		entry.ResourceMemory,
		entry.ResourceMemoryLimit,
		entry.ResourceNetworkRx,
		entry.ResourceNetworkTx,
		nullable(entry.ErrorMessage),
		entry.CheckedAt.UTC(),
	)
	if err != nil {
		return err
	}

	entry.ID, err = result.LastInsertId()
	return err
}

// ListByContainer returns the health checks of one container, newest first.
func (r *HealthCheckLogRepository) ListByContainer(ctx context.Context, containerID string, limit int) ([]*models.HealthCheckLog, error) {
	query := `
		SELECT id, container_id, container_name, status,
		       resource_cpu, resource_memory, resource_memory_limit,
		       resource_network_rx, resource_network_tx,
		       error_message, checked_at
		FROM health_check_logs
		WHERE container_id = ?
		ORDER BY checked_at DESC, id DESC
		LIMIT ?`

	return queryAll(ctx, r.db, query, []any{containerID, clampLimit(limit)}, func(rows *sql.Rows) (*models.HealthCheckLog, error) {
		entry := &models.HealthCheckLog{}
		var errorMsg sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.ContainerID,
			&entry.ContainerName,
			&entry.Status,
			&entry.ResourceCPU,
			&entry.ResourceMemory,
			&entry.ResourceMemoryLimit,
			&entry.ResourceNetworkRx,
			&entry.ResourceNetworkTx,
			&errorMsg,
			&entry.CheckedAt,
		)
		entry.ErrorMessage = errorMsg.String
		return entry, err
	})
}

// DeleteOlderThan removes health checks recorded before cutoff.
func (r *HealthCheckLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "health_check_logs", "checked_at", cutoff)
}
