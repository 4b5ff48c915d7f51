// Package service provides the container and image operations built on the runtime adapter.
package service

import (
	"context"
	"io"
	"time"

	"nfcunha/deckhand/core/command"
	"nfcunha/deckhand/core/models"
	"nfcunha/deckhand/utils/statsutil"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// bulkLogTail is the number of lines returned by a bulk log read.
const bulkLogTail = "1000"

// snapshotWorkers bounds the number of concurrent inspect calls of a snapshot.
const snapshotWorkers = 8

// ContainerRuntime is the part of the runtime adapter used for containers.
type ContainerRuntime interface {
	ListContainers(ctx context.Context, all bool) ([]models.Container, error)
	InspectContainer(ctx context.Context, id string) (*models.ContainerDetail, error)
	GetRawStats(ctx context.Context, id string) (*models.RawStats, error)
	OpenLogStream(ctx context.Context, id string, opts models.LogOptions) (io.ReadCloser, error)
	GetContainer(ctx context.Context, id string) (models.ContainerHandle, error)
}

// ActionRecorder persists the audit trail of user actions.
type ActionRecorder interface {
	Create(log *models.ActionLog) error
}

// ContainerService handles container-related operations.
type ContainerService struct {
	runtime ContainerRuntime
	actions ActionRecorder
	logger  *logrus.Logger
}

// NewContainerService creates a new container service. actions may be nil.
func NewContainerService(runtime ContainerRuntime, actions ActionRecorder, logger *logrus.Logger) *ContainerService {
	return &ContainerService{
		runtime: runtime,
		actions: actions,
		logger:  logger,
	}
}

// ListContainers returns every container, stopped ones included.
func (s *ContainerService) ListContainers(ctx context.Context) ([]models.Container, error) {
	return s.runtime.ListContainers(ctx, true)
}

// GetContainer returns the detail view of one container.
func (s *ContainerService) GetContainer(ctx context.Context, containerID string) (*models.ContainerDetail, error) {
	return s.runtime.InspectContainer(ctx, containerID)
}

// GetStats takes one stats sample and normalizes it.
func (s *ContainerService) GetStats(ctx context.Context, containerID string) (*models.ContainerStats, error) {
	raw, err := s.runtime.GetRawStats(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return statsutil.Calculate(raw)
}

// GetLogs reads the last lines of a container's log and returns them formatted.
func (s *ContainerService) GetLogs(ctx context.Context, containerID string) (string, error) {
	stream, err := s.runtime.OpenLogStream(ctx, containerID, models.LogOptions{
		Follow:     false,
		Tail:       bulkLogTail,
		Timestamps: true,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	raw, err := io.ReadAll(stream)
	if err != nil {
		return "", models.NewError(models.ErrRuntimeError, "read container logs", err)
	}
	return FormatLogs(string(raw)), nil
}

// ExecuteCommand resolves the container and runs cmd on it once. An unknown id fails
// before any lifecycle call is made.
func (s *ContainerService) ExecuteCommand(ctx context.Context, containerID string, cmd command.Command) error {
	handle, err := s.runtime.GetContainer(ctx, containerID)
	if err != nil {
		return s.logAction(cmd.Name(), containerID, "", err)
	}

	err = cmd.Execute(ctx, handle)
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"container_id": handle.ID(),
			"action":       cmd.Name(),
		}).Infof("Container %s: %s", handle.Name(), command.SuccessMessage(cmd))
	}
	return s.logAction(cmd.Name(), handle.ID(), handle.Name(), err)
}

// Snapshot lists all containers and inspects each of them. A container that cannot be
// inspected is logged and returned without detail; only a failing list fails the call.
func (s *ContainerService) Snapshot(ctx context.Context) ([]models.ContainerSnapshot, error) {
	containers, err := s.runtime.ListContainers(ctx, true)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.ContainerSnapshot, len(containers))
	var g errgroup.Group
	g.SetLimit(snapshotWorkers)

	for i, ctr := range containers {
		snapshots[i].Container = ctr
		g.Go(func() error {
			detail, err := s.runtime.InspectContainer(ctx, ctr.ID)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"container_id": ctr.ID,
					"error":        err,
				}).Warn("Skipping container in snapshot")
				return nil
			}
			snapshots[i].Detail = detail
			return nil
		})
	}
	_ = g.Wait()

	return snapshots, nil
}

// logAction records an action in the audit trail and returns err unchanged.
func (s *ContainerService) logAction(action, containerID, containerName string, err error) error {
	recordAction(s.actions, s.logger, &models.ActionLog{
		ActionType:   action,
		ResourceType: "container",
		ResourceID:   containerID,
		ResourceName: containerName,
		Success:      err == nil,
		ExecutedAt:   time.Now(),
	}, err)
	return err
}

func recordAction(actions ActionRecorder, logger *logrus.Logger, entry *models.ActionLog, err error) {
	if actions == nil {
		return
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if logErr := actions.Create(entry); logErr != nil {
		logger.WithError(logErr).Warn("Failed to log action")
	}
}
