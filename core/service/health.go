package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nfcunha/deckhand/core/models"

	"github.com/sirupsen/logrus"
)

// Health check statuses.
const (
	HealthHealthy          = "healthy"
	HealthResourceCritical = "resource_critical"
	HealthError            = "error"
)

// HealthRecorder persists health check results.
type HealthRecorder interface {
	Create(log *models.HealthCheckLog) error
}

// EventRecorder persists system events.
type EventRecorder interface {
	Create(log *models.EventLog) error
}

// HealthThresholds are the CPU and memory percentages above which a container is critical.
type HealthThresholds struct {
	CPU    float64
	Memory float64
}

// HealthChecker periodically samples running containers and records their health.
type HealthChecker struct {
	runtime    ContainerRuntime
	store      HealthRecorder
	events     EventRecorder
	thresholds HealthThresholds
	logger     *logrus.Logger

	runtimeDown bool
}

// NewHealthChecker creates a health checker. events may be nil.
func NewHealthChecker(runtime ContainerRuntime, store HealthRecorder, events EventRecorder, thresholds HealthThresholds, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		runtime:    runtime,
		store:      store,
		events:     events,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Run checks every interval until ctx is done.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.WithFields(logrus.Fields{
		"interval":         interval,
		"cpu_threshold":    h.thresholds.CPU,
		"memory_threshold": h.thresholds.Memory,
	}).Info("Health checker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check samples every running container once. Run calls it from a single goroutine.
func (h *HealthChecker) Check(ctx context.Context) {
	containers, err := h.runtime.ListContainers(ctx, false)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to list containers for health check")
		if errors.Is(err, models.ErrRuntimeUnavailable) && !h.runtimeDown {
			h.runtimeDown = true
			h.recordEvent(models.LevelError, "Container runtime unavailable", map[string]string{"error": err.Error()})
		}
		return
	}
	if h.runtimeDown {
		h.runtimeDown = false
		h.recordEvent(models.LevelInfo, "Container runtime reachable again", nil)
	}

	for _, ctr := range containers {
		if err := h.store.Create(h.checkContainer(ctx, ctr)); err != nil {
			h.logger.WithError(err).Error("Failed to store health check log")
		}
	}
}

func (h *HealthChecker) checkContainer(ctx context.Context, ctr models.Container) *models.HealthCheckLog {
	entry := &models.HealthCheckLog{
		ContainerID:   ctr.ID,
		ContainerName: ctr.Name,
		CheckedAt:     time.Now(),
	}

	sample, err := Sample(ctx, h.runtime, ctr.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"container_id": ctr.ID, "error": err}).Warn("Failed to sample container")
		entry.Status = HealthError
		entry.ErrorMessage = err.Error()
		return entry
	}

	entry.Status = HealthHealthy
	entry.ResourceCPU = sample.CPUPercent
	entry.ResourceMemory = sample.MemoryUsage
	entry.ResourceMemoryLimit = sample.MemoryLimit
	entry.ResourceNetworkRx = sample.NetworkRx
	entry.ResourceNetworkTx = sample.NetworkTx

	if sample.CPUPercent > h.thresholds.CPU || sample.MemoryPercent > h.thresholds.Memory {
		entry.Status = HealthResourceCritical
		h.logger.WithFields(logrus.Fields{
			"container_id": ctr.ID,
			"cpu":          sample.CPUPercent,
			"memory":       sample.MemoryPercent,
		}).Warnf("Container %s is resource critical", ctr.Name)
	}
	return entry
}

func (h *HealthChecker) recordEvent(level, message string, metadata map[string]string) {
	RecordEvent(h.events, h.logger, "runtime", level, message, metadata)
}

// RecordEvent stores a system event. Failures are logged and dropped.
func RecordEvent(events EventRecorder, logger *logrus.Logger, eventType, level, message string, metadata map[string]string) {
	if events == nil {
		return
	}

	entry := &models.EventLog{
		EventType: eventType,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(data)
		}
	}

	if err := events.Create(entry); err != nil {
		logger.WithError(err).Error("Failed to store event log")
	}
}
