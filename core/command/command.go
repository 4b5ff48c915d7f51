// Package command implements the container lifecycle actions as small invokable values.
package command

import (
	"context"
	"fmt"

	"nfcunha/deckhand/core/models"
)

// Command is a single container lifecycle action. Name is a bare verb and is reused in
// the user facing messages built by SuccessMessage and FailureMessage.
type Command interface {
	Name() string
	Execute(ctx context.Context, target models.ContainerHandle) error
}

// Start starts a container.
type Start struct{}

func (Start) Name() string { return "start" }

func (Start) Execute(ctx context.Context, target models.ContainerHandle) error {
	return target.Start(ctx)
}

// Stop stops a container.
type Stop struct{}

func (Stop) Name() string { return "stop" }

func (Stop) Execute(ctx context.Context, target models.ContainerHandle) error {
	return target.Stop(ctx)
}

// Restart restarts a container.
type Restart struct{}

func (Restart) Name() string { return "restart" }

func (Restart) Execute(ctx context.Context, target models.ContainerHandle) error {
	return target.Restart(ctx)
}

// Delete force-removes a container, running or not.
type Delete struct{}

func (Delete) Name() string { return "delete" }

func (Delete) Execute(ctx context.Context, target models.ContainerHandle) error {
	return target.Remove(ctx, true)
}

var registry = map[string]Command{
	"start":   Start{},
	"stop":    Stop{},
	"restart": Restart{},
	"delete":  Delete{},
}

// Lookup returns the command registered under name.
func Lookup(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

// SuccessMessage renders "Container {name}ed successfully".
//
// The suffix is appended to the bare verb as is, so "stop" and "delete" render as
// "stoped" and "deleteed".
func SuccessMessage(cmd Command) string {
	return fmt.Sprintf("Container %sed successfully", cmd.Name())
}

// FailureMessage renders "Failed to {name} container".
func FailureMessage(cmd Command) string {
	return fmt.Sprintf("Failed to %s container", cmd.Name())
}
