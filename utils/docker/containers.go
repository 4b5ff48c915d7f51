package docker

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

// stopTimeout is the grace period, in seconds, given to a container on stop and restart.
const stopTimeout = 10

// ListContainers lists runtime containers, stopped ones included when all is set.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]models.Container, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	list, err := c.api.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, c.classify("list containers", err)
	}

	result := make([]models.Container, 0, len(list))
	for _, ctr := range list {
		result = append(result, toContainer(ctr))
	}
	return result, nil
}

func toContainer(ctr types.Container) models.Container {
	name := "unnamed"
	if len(ctr.Names) > 0 {
		// Names are stored as paths.
		if n := strings.TrimPrefix(ctr.Names[0], "/"); n != "" {
			name = n
		}
	}

	return models.Container{
		ID:     ctr.ID,
		Name:   name,
		Image:  ctr.Image,
		State:  ctr.State,
		Status: ctr.Status,
	}
}

// InspectContainer returns the detail view of a container.
func (c *Client) InspectContainer(ctx context.Context, id string) (*models.ContainerDetail, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, c.classify("inspect container", err)
	}
	return toContainerDetail(info), nil
}

func toContainerDetail(info types.ContainerJSON) *models.ContainerDetail {
	detail := &models.ContainerDetail{Name: "unnamed"}

	if base := info.ContainerJSONBase; base != nil {
		detail.ID = base.ID
		detail.ImageID = base.Image
		detail.Command = base.Path
		detail.Created = base.Created
		if name := strings.TrimPrefix(base.Name, "/"); name != "" {
			detail.Name = name
		}
		if base.State != nil {
			detail.State = base.State.Status
			detail.Running = base.State.Running
			detail.StartedAt = base.State.StartedAt
			detail.FinishedAt = base.State.FinishedAt
			detail.ExitCode = base.State.ExitCode
		}
		if base.HostConfig != nil {
			detail.NetworkMode = string(base.HostConfig.NetworkMode)
		}
	}

	if info.Config != nil {
		detail.Image = info.Config.Image
		detail.Labels = info.Config.Labels
		detail.TTY = info.Config.Tty
	}

	if info.NetworkSettings != nil {
		for port, bindings := range info.NetworkSettings.Ports {
			if len(bindings) == 0 {
				detail.Ports = append(detail.Ports, models.PortInfo{
					PrivatePort: uint16(port.Int()),
					Type:        port.Proto(),
				})
				continue
			}
			for _, binding := range bindings {
				detail.Ports = append(detail.Ports, models.PortInfo{
					IP:          binding.HostIP,
					PrivatePort: uint16(port.Int()),
					PublicPort:  parseUint16(binding.HostPort),
					Type:        port.Proto(),
				})
			}
		}
	}

	for _, mount := range info.Mounts {
		detail.Mounts = append(detail.Mounts, models.MountInfo{
			Type:        string(mount.Type),
			Name:        mount.Name,
			Source:      mount.Source,
			Destination: mount.Destination,
			Mode:        mount.Mode,
			RW:          mount.RW,
		})
	}

	return detail
}

func parseUint16(s string) uint16 {
	val, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(val)
}

// GetRawStats takes a single, non-streaming stats sample. The sample carries both the
// current and the preceding CPU counters.
func (c *Client) GetRawStats(ctx context.Context, id string) (*models.RawStats, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, c.classify("container stats", err)
	}
	defer resp.Body.Close()

	var raw models.RawStats
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, models.NewError(models.ErrInvalidStatsFormat, "container stats", err)
	}
	return &raw, nil
}

// OpenLogStream opens the log stream of a container. The returned reader yields plain
// log text with stdout and stderr interleaved; closing it tears down the runtime request.
func (c *Client) OpenLogStream(ctx context.Context, id string, opts models.LogOptions) (io.ReadCloser, error) {
	tty, err := c.isTTY(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := c.startStream(ctx, "container logs", func(ctx context.Context) (io.ReadCloser, error) {
		return c.api.ContainerLogs(ctx, id, container.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     opts.Follow,
			Tail:       opts.Tail,
			Timestamps: opts.Timestamps,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"container_id": id,
		"follow":       opts.Follow,
		"tail":         opts.Tail,
	}).Debug("Log stream opened")

	// A TTY container's stream is not multiplexed.
	if tty {
		return body, nil
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, body)
		body.Close()
		pw.CloseWithError(err)
	}()

	return &logStream{PipeReader: pr, body: body}, nil
}

type logStream struct {
	*io.PipeReader
	body io.Closer
}

func (s *logStream) Close() error {
	err := s.body.Close()
	s.PipeReader.Close()
	return err
}

func (c *Client) isTTY(ctx context.Context, id string) (bool, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return false, c.classify("inspect container", err)
	}
	return info.Config != nil && info.Config.Tty, nil
}

// GetContainer resolves id to a handle. Unknown ids fail with models.ErrNotFound before
// any lifecycle call is issued.
func (c *Client) GetContainer(ctx context.Context, id string) (models.ContainerHandle, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, c.classify("inspect container", err)
	}
	if info.ContainerJSONBase == nil {
		return nil, models.NotFound("inspect container", "no such container: %s", id)
	}

	return &containerHandle{
		client: c,
		id:     info.ID,
		name:   strings.TrimPrefix(info.Name, "/"),
	}, nil
}

type containerHandle struct {
	client *Client
	id     string
	name   string
}

func (h *containerHandle) ID() string   { return h.id }
func (h *containerHandle) Name() string { return h.name }

func (h *containerHandle) Start(ctx context.Context) error {
	ctx, cancel := h.client.callContext(ctx)
	defer cancel()
	return h.client.classify("start container", h.client.api.ContainerStart(ctx, h.id, container.StartOptions{}))
}

func (h *containerHandle) Stop(ctx context.Context) error {
	ctx, cancel := h.client.callContext(ctx)
	defer cancel()
	timeout := stopTimeout
	return h.client.classify("stop container", h.client.api.ContainerStop(ctx, h.id, container.StopOptions{Timeout: &timeout}))
}

func (h *containerHandle) Restart(ctx context.Context) error {
	ctx, cancel := h.client.callContext(ctx)
	defer cancel()
	timeout := stopTimeout
	return h.client.classify("restart container", h.client.api.ContainerRestart(ctx, h.id, container.StopOptions{Timeout: &timeout}))
}

func (h *containerHandle) Remove(ctx context.Context, force bool) error {
	ctx, cancel := h.client.callContext(ctx)
	defer cancel()
	return h.client.classify("remove container", h.client.api.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: force}))
}
