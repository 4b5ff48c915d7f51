package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Pruner deletes audit records older than a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob removes audit records older than the retention period once a day.
type RetentionJob struct {
	stores map[string]Pruner // table name -> store
	days   int
	logger *logrus.Logger
}

// NewRetentionJob creates a retention job over the named stores.
func NewRetentionJob(stores map[string]Pruner, days int, logger *logrus.Logger) *RetentionJob {
	return &RetentionJob{stores: stores, days: days, logger: logger}
}

// Run prunes immediately and then every 24 hours until ctx is done.
func (j *RetentionJob) Run(ctx context.Context) {
	j.Prune(ctx, time.Now())

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.Prune(ctx, now)
		}
	}
}

// Prune deletes every record older than the retention period relative to now.
func (j *RetentionJob) Prune(ctx context.Context, now time.Time) int64 {
	cutoff := now.AddDate(0, 0, -j.days)

	var total int64
	for name, store := range j.stores {
		n, err := store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.WithFields(logrus.Fields{"table": name, "error": err}).Error("Failed to prune audit records")
			continue
		}
		if n > 0 {
			j.logger.WithFields(logrus.Fields{"table": name, "deleted": n}).Info("Pruned audit records")
		}
		total += n
	}
	return total
}
