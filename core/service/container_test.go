package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"nfcunha/deckhand/core/command"
	"nfcunha/deckhand/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var webID = "a1b2" + strings.Repeat("0", 60)

func TestListContainersAndStats(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.containers = []models.Container{
		{ID: webID, Name: "web", Image: "nginx:latest", State: "running", Status: "Up 2 hours"},
	}
	runtime.stats[webID] = rawStats(400000000, 200000000, 3000000000, 1000000000, 4, 512<<20, 2<<30)

	svc := NewContainerService(runtime, nil, quietLogger())

	containers, err := svc.ListContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runtime.containers, containers)

	stats, err := svc.GetStats(context.Background(), webID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", stats.CPU)
	assert.Equal(t, "25.00", stats.Memory.Percent)
	assert.Equal(t, "512 MB", stats.Memory.Usage)
	assert.Equal(t, "2 GB", stats.Memory.Limit)
}

func TestGetStatsPropagatesErrors(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.stats[webID] = &models.RawStats{}
	svc := NewContainerService(runtime, nil, quietLogger())

	_, err := svc.GetStats(context.Background(), webID)
	assert.ErrorIs(t, err, models.ErrInvalidStatsFormat)

	_, err = svc.GetStats(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetLogsFormatsBulkOutput(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.logs[webID] = "2024-01-01T00:00:00Z    hello\n\n2024-01-01T00:00:01Z\tworld\r\n"
	svc := NewContainerService(runtime, nil, quietLogger())

	logs, err := svc.GetLogs(context.Background(), webID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z hello\n2024-01-01T00:00:01Z world", logs)

	require.Len(t, runtime.logOpts, 1)
	assert.Equal(t, models.LogOptions{Follow: false, Tail: "1000", Timestamps: true}, runtime.logOpts[0])
}

func TestFormatLogs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank lines only", "\n  \n\n", ""},
		{"no whitespace", "token", "token"},
		{"collapses first gap only", "ts   a  b", "ts a  b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLogs(tt.in))
		})
	}
}

func TestExecuteCommand(t *testing.T) {
	t.Run("runs once and records the action", func(t *testing.T) {
		runtime := newFakeRuntime()
		handle := &fakeHandle{id: webID, name: "web"}
		runtime.handles[webID] = handle
		actions := &memoryActions{}
		svc := NewContainerService(runtime, actions, quietLogger())

		require.NoError(t, svc.ExecuteCommand(context.Background(), webID, command.Restart{}))
		assert.Equal(t, []string{"restart"}, handle.calls)

		entry := actions.last()
		require.NotNil(t, entry)
		assert.Equal(t, "restart", entry.ActionType)
		assert.Equal(t, "container", entry.ResourceType)
		assert.Equal(t, "web", entry.ResourceName)
		assert.True(t, entry.Success)
	})

	t.Run("unknown container fails with no lifecycle call", func(t *testing.T) {
		runtime := newFakeRuntime()
		other := &fakeHandle{id: "other", name: "other"}
		runtime.handles["other"] = other
		actions := &memoryActions{}
		svc := NewContainerService(runtime, actions, quietLogger())

		err := svc.ExecuteCommand(context.Background(), webID, command.Delete{})
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Empty(t, other.calls)

		entry := actions.last()
		require.NotNil(t, entry)
		assert.False(t, entry.Success)
		assert.NotEmpty(t, entry.ErrorMessage)
	})

	t.Run("runtime failure is returned without retry", func(t *testing.T) {
		runtime := newFakeRuntime()
		failure := &models.Error{Kind: models.ErrRuntimeError, Op: "stop", Message: "container is not running"}
		handle := &fakeHandle{id: webID, name: "web", err: failure}
		runtime.handles[webID] = handle
		svc := NewContainerService(runtime, nil, quietLogger())

		err := svc.ExecuteCommand(context.Background(), webID, command.Stop{})
		assert.ErrorIs(t, err, models.ErrRuntimeError)
		assert.Contains(t, err.Error(), "container is not running")
		assert.Equal(t, []string{"stop"}, handle.calls)
	})
}

func TestSnapshotIsBestEffort(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.containers = []models.Container{
		{ID: "c1", Name: "one", State: "running"},
		{ID: "c2", Name: "two", State: "exited"},
	}
	runtime.details["c1"] = &models.ContainerDetail{ID: "c1", Name: "one"}
	svc := NewContainerService(runtime, nil, quietLogger())

	snapshots, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "one", snapshots[0].Detail.Name)
	assert.Equal(t, "two", snapshots[1].Name)
	assert.Nil(t, snapshots[1].Detail)
	assert.Equal(t, 2, runtime.inspectHits)
}

func TestSnapshotFailsWhenListFails(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.listErr = models.NewError(models.ErrRuntimeUnavailable, "list containers", errors.New("connection refused"))
	svc := NewContainerService(runtime, nil, quietLogger())

	_, err := svc.Snapshot(context.Background())
	assert.ErrorIs(t, err, models.ErrRuntimeUnavailable)
}

func TestCreateLogArchive(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.details[webID] = &models.ContainerDetail{ID: webID, Name: "web"}
	runtime.logs[webID] = "ts line\n"
	svc := NewContainerService(runtime, nil, quietLogger())

	var buf bytes.Buffer
	require.NoError(t, svc.CreateLogArchive(context.Background(), webID, &buf))

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.True(t, strings.HasPrefix(reader.File[0].Name, "web_"))

	f, err := reader.File[0].Open()
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "ts line", string(content))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestCreateLogArchiveReportsFinalizeError(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.details[webID] = &models.ContainerDetail{ID: webID, Name: "web"}
	runtime.logs[webID] = "ts line\n"
	svc := NewContainerService(runtime, nil, quietLogger())

	err := svc.CreateLogArchive(context.Background(), webID, failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to finalize zip archive")
	assert.Contains(t, err.Error(), "disk full")
}
