package models

import (
	"context"
	"regexp"

	"github.com/docker/docker/api/types/container"
)

// Container is the list view of a runtime container.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"` // created, running, paused, restarting, removing, exited, dead
	Status string `json:"status"`
}

// ContainerDetail is the inspect view of a single container.
type ContainerDetail struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	ImageID     string            `json:"image_id"`
	Command     string            `json:"command"`
	Created     string            `json:"created"`
	State       string            `json:"state"`
	Running     bool              `json:"running"`
	StartedAt   string            `json:"started_at,omitempty"`
	FinishedAt  string            `json:"finished_at,omitempty"`
	ExitCode    int               `json:"exit_code"`
	TTY         bool              `json:"tty"`
	Ports       []PortInfo        `json:"ports"`
	Mounts      []MountInfo       `json:"mounts"`
	Labels      map[string]string `json:"labels"`
	NetworkMode string            `json:"network_mode"`
}

// PortInfo represents a container port mapping.
type PortInfo struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"private_port"`
	PublicPort  uint16 `json:"public_port,omitempty"`
	Type        string `json:"type"`
}

// MountInfo represents a container mount.
type MountInfo struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
	RW          bool   `json:"rw"`
}

// RawStats is a single non-streaming stats sample as reported by the runtime.
// CPUStats and MemoryStats are pointers so a sample lacking either one can be told apart
// from a sample reporting zeros.
type RawStats struct {
	Read        string                            `json:"read"`
	CPUStats    *container.CPUStats               `json:"cpu_stats,omitempty"`
	PreCPUStats *container.CPUStats               `json:"precpu_stats,omitempty"`
	MemoryStats *container.MemoryStats            `json:"memory_stats,omitempty"`
	Networks    map[string]container.NetworkStats `json:"networks,omitempty"`
	BlkioStats  container.BlkioStats              `json:"blkio_stats"`
}

// ContainerStats is the normalized, point-in-time view of a stats sample.
type ContainerStats struct {
	CPU    string      `json:"cpu"`
	Memory MemoryUsage `json:"memory"`
}

// MemoryUsage holds the memory part of ContainerStats.
type MemoryUsage struct {
	Percent string `json:"percent"`
	Usage   string `json:"usage"`
	Limit   string `json:"limit"`
}

// LogOptions selects what a log stream returns.
type LogOptions struct {
	Follow     bool
	Tail       string
	Timestamps bool
}

// ContainerSnapshot is one entry of the periodic dashboard refresh.
type ContainerSnapshot struct {
	Container
	Detail *ContainerDetail `json:"detail,omitempty"`
}

// ContainerHandle is a resolved reference to a runtime container on which lifecycle
// calls can be issued.
type ContainerHandle interface {
	ID() string
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Remove(ctx context.Context, force bool) error
}

var containerIDPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// IsContainerID reports whether s is a full 64 character hexadecimal container id.
func IsContainerID(s string) bool {
	return containerIDPattern.MatchString(s)
}
