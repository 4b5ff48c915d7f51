// Package models defines the domain types shared by the runtime adapter, services and handlers.
package models

import "time"

// Event levels stored with an EventLog.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ActionLog is one audited user action on a container or an image.
// ActionType is the command or image operation name; ResourceType is "container" or "image".
type ActionLog struct {
	ID           int64     `json:"id"`
	ActionType   string    `json:"action_type"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// HealthCheckLog is the outcome of sampling one running container.
type HealthCheckLog struct {
	ID                  int64     `json:"id"`
	ContainerID         string    `json:"container_id"`
	ContainerName       string    `json:"container_name"`
	Status              string    `json:"status"`
	ResourceCPU         float64   `json:"resource_cpu"`
	ResourceMemory      uint64    `json:"resource_memory"`
	ResourceMemoryLimit uint64    `json:"resource_memory_limit"`
	ResourceNetworkRx   uint64    `json:"resource_network_rx"`
	ResourceNetworkTx   uint64    `json:"resource_network_tx"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// EventLog is a system event such as a server start or a lost runtime connection.
// Metadata holds a JSON object, empty when there is none.
type EventLog struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
