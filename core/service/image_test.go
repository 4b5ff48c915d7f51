package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, stream *ProgressStream) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	for e := range stream.Events {
		events = append(events, e)
	}
	return events
}

func TestListImagesUntagged(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.images = []image.Summary{
		{ID: "sha256:1", RepoTags: []string{"nginx:latest"}, Size: 10},
		{ID: "sha256:2"},
		{ID: "sha256:3", RepoTags: []string{"localhost:5000/app:v1"}},
	}
	svc := NewImageService(runtime, nil, nil, quietLogger())

	images, err := svc.ListImages(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, "nginx", images[0].Repository)
	assert.Equal(t, "latest", images[0].Tag)
	assert.Equal(t, models.NoneRef, images[1].Repository)
	assert.Equal(t, models.NoneRef, images[1].Tag)
	assert.Equal(t, "localhost:5000/app", images[2].Repository)
	assert.Equal(t, "v1", images[2].Tag)
}

func TestSplitReference(t *testing.T) {
	tests := []struct {
		ref, repo, tag string
	}{
		{"nginx:1.25", "nginx", "1.25"},
		{"nginx", "nginx", models.NoneRef},
		{"registry:5000/team/app", "registry:5000/team/app", models.NoneRef},
		{"<none>:<none>", models.NoneRef, models.NoneRef},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			repo, tag := splitReference(tt.ref)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestPullImage(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.pullBody = `{"status":"Pulling from library/nginx","id":"latest"}
{"status":"Downloading","id":"abc","progressDetail":{"current":50,"total":100}}
{"status":"Status: Downloaded newer image for nginx:latest"}
`
	actions := &memoryActions{}
	svc := NewImageService(runtime, actions, nil, quietLogger())

	stream, err := svc.PullImage(context.Background(), models.PullRequest{Image: "nginx"})
	require.NoError(t, err)

	events := drain(t, stream)
	require.NoError(t, stream.Err())
	require.Len(t, events, 3)
	assert.Equal(t, int64(50), events[1].Current)
	assert.Equal(t, int64(100), events[1].Total)

	assert.Equal(t, []string{"nginx:latest"}, runtime.pullRefs)
	entry := actions.last()
	require.NotNil(t, entry)
	assert.Equal(t, "pull", entry.ActionType)
	assert.True(t, entry.Success)
}

func TestPullImageRequiresName(t *testing.T) {
	svc := NewImageService(newFakeRuntime(), nil, nil, quietLogger())

	_, err := svc.PullImage(context.Background(), models.PullRequest{Tag: "latest"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPullImageReportsStreamError(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.pullBody = `{"status":"Pulling"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
`
	actions := &memoryActions{}
	svc := NewImageService(runtime, actions, nil, quietLogger())

	stream, err := svc.PullImage(context.Background(), models.PullRequest{Image: "nope", Tag: "1"})
	require.NoError(t, err)

	events := drain(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, "manifest unknown", events[1].Error)

	err = stream.Err()
	assert.ErrorIs(t, err, models.ErrRuntimeError)
	assert.Contains(t, err.Error(), "manifest unknown")
	assert.False(t, actions.last().Success)
}

func TestBuildImage(t *testing.T) {
	t.Run("missing context fails before the runtime is called", func(t *testing.T) {
		runtime := newFakeRuntime()
		svc := NewImageService(runtime, nil, nil, quietLogger())

		_, err := svc.BuildImage(context.Background(), models.BuildRequest{
			ContextPath: filepath.Join(t.TempDir(), "missing"),
		})
		assert.ErrorIs(t, err, models.ErrInvalidBuildContext)
		assert.Empty(t, runtime.buildOpts)
	})

	t.Run("file is not a context", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "Dockerfile")
		require.NoError(t, os.WriteFile(file, []byte("FROM scratch\n"), 0o644))
		svc := NewImageService(newFakeRuntime(), nil, nil, quietLogger())

		_, err := svc.BuildImage(context.Background(), models.BuildRequest{ContextPath: file})
		assert.ErrorIs(t, err, models.ErrInvalidBuildContext)
	})

	t.Run("reports the built image id", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

		runtime := newFakeRuntime()
		runtime.buildBody = `{"stream":"Step 1/1 : FROM scratch\n"}
{"aux":{"ID":"sha256:built"}}
{"stream":"Successfully built built\n"}
`
		svc := NewImageService(runtime, nil, nil, quietLogger())

		noRm := false
		stream, err := svc.BuildImage(context.Background(), models.BuildRequest{
			ContextPath: dir,
			Tags:        []string{"app:dev"},
			Target:      "final",
			Remove:      &noRm,
		})
		require.NoError(t, err)

		drain(t, stream)
		require.NoError(t, stream.Err())
		assert.Equal(t, "sha256:built", stream.ImageID())

		require.Len(t, runtime.buildOpts, 1)
		assert.Equal(t, []string{"app:dev"}, runtime.buildOpts[0].Tags)
		assert.Equal(t, "final", runtime.buildOpts[0].Target)
		assert.False(t, runtime.buildOpts[0].Remove)
	})

	t.Run("rm defaults to true", func(t *testing.T) {
		runtime := newFakeRuntime()
		svc := NewImageService(runtime, nil, nil, quietLogger())

		stream, err := svc.BuildImage(context.Background(), models.BuildRequest{ContextPath: t.TempDir()})
		require.NoError(t, err)
		drain(t, stream)
		require.Len(t, runtime.buildOpts, 1)
		assert.True(t, runtime.buildOpts[0].Remove)
	})
}

type fakeSource struct {
	dir string
	err error
}

func (f *fakeSource) Clone(context.Context, string, string) (string, error) {
	return f.dir, f.err
}

func TestBuildImageFromGit(t *testing.T) {
	t.Run("clone becomes the context and is removed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "clone")
		require.NoError(t, os.Mkdir(dir, 0o755))

		runtime := newFakeRuntime()
		svc := NewImageService(runtime, nil, &fakeSource{dir: dir}, quietLogger())

		stream, err := svc.BuildImage(context.Background(), models.BuildRequest{GitURL: "https://example.com/app.git"})
		require.NoError(t, err)
		drain(t, stream)
		require.NoError(t, stream.Err())

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("clone failure is an invalid context", func(t *testing.T) {
		svc := NewImageService(newFakeRuntime(), nil, &fakeSource{err: errors.New("auth required")}, quietLogger())

		_, err := svc.BuildImage(context.Background(), models.BuildRequest{GitURL: "https://example.com/private.git"})
		assert.ErrorIs(t, err, models.ErrInvalidBuildContext)
	})

	t.Run("git sources disabled", func(t *testing.T) {
		svc := NewImageService(newFakeRuntime(), nil, nil, quietLogger())

		_, err := svc.BuildImage(context.Background(), models.BuildRequest{GitURL: "https://example.com/app.git"})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestRemoveImage(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.removeResp = []image.DeleteResponse{{Untagged: "nginx:latest"}, {Deleted: "sha256:1"}}
	svc := NewImageService(runtime, nil, nil, quietLogger())

	result, err := svc.RemoveImage(context.Background(), "sha256:1", true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"sha256:1"}, result.Deleted)
	assert.Equal(t, []string{"nginx:latest"}, result.Untagged)
	assert.Equal(t, []removeCall{{ref: "sha256:1", force: true, noprune: false}}, runtime.removes)
}

func TestTagAndUntag(t *testing.T) {
	runtime := newFakeRuntime()
	actions := &memoryActions{}
	svc := NewImageService(runtime, actions, nil, quietLogger())

	require.NoError(t, svc.TagImage(context.Background(), "sha256:1", "app", ""))
	assert.Equal(t, []string{"sha256:1->app:latest"}, runtime.tags)

	require.NoError(t, svc.UntagImage(context.Background(), "sha256:1", "app", "v1"))
	assert.Equal(t, []removeCall{{ref: "app:v1", force: false, noprune: true}}, runtime.removes)
	assert.Equal(t, "untag", actions.last().ActionType)

	assert.ErrorIs(t, svc.TagImage(context.Background(), "sha256:1", "", "v1"), models.ErrInvalidInput)
	assert.ErrorIs(t, svc.UntagImage(context.Background(), "sha256:1", "", "v1"), models.ErrInvalidInput)
}

func TestImageDetails(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.imageDetail["sha256:1"] = &models.ImageDetail{
		ID:     "sha256:1",
		Size:   42,
		Layers: []string{"l1", "l2", "l3"},
	}
	svc := NewImageService(runtime, nil, nil, quietLogger())

	summary, err := svc.GetImageDetails(context.Background(), "sha256:1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.LayerCount)
	assert.Equal(t, []string{}, summary.Tags)

	_, err = svc.InspectImage(context.Background(), "sha256:missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSearchImages(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.searchResp = []registry.SearchResult{{Name: "nginx", StarCount: 100, IsOfficial: true}}
	svc := NewImageService(runtime, nil, nil, quietLogger())

	results, err := svc.SearchImages(context.Background(), "nginx", 0, map[string][]string{"is-official": {"true"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Official)
	assert.Equal(t, 100, results[0].Stars)
	assert.Equal(t, 25, runtime.searchLimit)
	assert.Equal(t, []string{"true"}, runtime.searchArgs.Get("is-official"))

	_, err = svc.SearchImages(context.Background(), "nginx", 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, runtime.searchLimit)

	_, err = svc.SearchImages(context.Background(), " ", 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestExportImages(t *testing.T) {
	runtime := newFakeRuntime()
	svc := NewImageService(runtime, nil, nil, quietLogger())

	_, err := svc.ExportImages(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.ExportImages(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "multiple image export not implemented")
	assert.Nil(t, runtime.saveIDs)

	archive, err := svc.ExportImages(context.Background(), []string{"a"})
	require.NoError(t, err)
	defer archive.Close()
	assert.Equal(t, []string{"a"}, runtime.saveIDs)
}

func TestImportImage(t *testing.T) {
	t.Run("stream source with retag", func(t *testing.T) {
		runtime := newFakeRuntime()
		runtime.loadBody = `{"stream":"Loaded image ID: sha256:loaded\n"}` + "\n"
		svc := NewImageService(runtime, nil, nil, quietLogger())

		stream, err := svc.ImportImage(context.Background(), models.ImportRequest{
			Source: strings.NewReader("archive"),
			Repo:   "restored",
		})
		require.NoError(t, err)
		drain(t, stream)
		require.NoError(t, stream.Err())

		assert.Equal(t, "sha256:loaded", stream.ImageID())
		assert.Equal(t, []byte("archive"), runtime.loaded)
		assert.Equal(t, []string{"sha256:loaded->restored:latest"}, runtime.tags)
	})

	t.Run("path source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "image.tar")
		require.NoError(t, os.WriteFile(path, []byte("from-disk"), 0o644))

		runtime := newFakeRuntime()
		runtime.loadBody = `{"stream":"Loaded image: app:v2\n"}` + "\n"
		svc := NewImageService(runtime, nil, nil, quietLogger())

		stream, err := svc.ImportImage(context.Background(), models.ImportRequest{Path: path})
		require.NoError(t, err)
		drain(t, stream)
		require.NoError(t, stream.Err())

		assert.Equal(t, "app:v2", stream.ImageID())
		assert.Equal(t, []byte("from-disk"), runtime.loaded)
		assert.Empty(t, runtime.tags)
	})

	t.Run("missing path", func(t *testing.T) {
		svc := NewImageService(newFakeRuntime(), nil, nil, quietLogger())

		_, err := svc.ImportImage(context.Background(), models.ImportRequest{Path: filepath.Join(t.TempDir(), "nope.tar")})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("retag without reported id", func(t *testing.T) {
		runtime := newFakeRuntime()
		runtime.loadBody = `{"stream":"done\n"}` + "\n"
		svc := NewImageService(runtime, nil, nil, quietLogger())

		stream, err := svc.ImportImage(context.Background(), models.ImportRequest{Source: strings.NewReader("x"), Repo: "r"})
		require.NoError(t, err)
		drain(t, stream)
		assert.ErrorIs(t, stream.Err(), models.ErrRuntimeError)
	})
}

func TestPruneImages(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.prune = &models.PruneResult{ImagesDeleted: []string{"sha256:1"}, SpaceReclaimed: 1024}
	actions := &memoryActions{}
	svc := NewImageService(runtime, actions, nil, quietLogger())

	result, err := svc.PruneImages(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), result.SpaceReclaimed)
	assert.Equal(t, "prune", actions.last().ActionType)
}

func TestProgressStreamClose(t *testing.T) {
	runtime := newFakeRuntime()
	runtime.pullBody = strings.Repeat(`{"status":"Downloading"}`+"\n", 100)
	svc := NewImageService(runtime, nil, nil, quietLogger())

	stream, err := svc.PullImage(context.Background(), models.PullRequest{Image: "nginx"})
	require.NoError(t, err)

	<-stream.Events
	require.NoError(t, stream.Close())
	for range stream.Events {
	}
}
