package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/sirupsen/logrus"
)

type imagePuller struct{ *imageDeps }

func (p *imagePuller) pull(ctx context.Context, req models.PullRequest) (*ProgressStream, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, models.InvalidInput("pull image", "image name is required")
	}

	ref := imageRef(req.Image, req.Tag)
	body, err := p.runtime.PullImage(ctx, ref, req.Auth)
	if err != nil {
		return nil, p.logAction("pull", ref, ref, err)
	}

	p.logger.WithField("image", ref).Info("Started pulling image")
	return newProgressStream("pull image", body, p.logger, func(err error, _ string) error {
		if err == nil {
			p.logger.WithField("image", ref).Info("Image pulled")
		}
		return p.logAction("pull", ref, ref, err)
	}), nil
}

type imageBuilder struct {
	*imageDeps
	sources BuildSource
}

func (b *imageBuilder) build(ctx context.Context, req models.BuildRequest) (*ProgressStream, error) {
	contextDir, cleanup, err := b.resolveContext(ctx, req)
	if err != nil {
		return nil, err
	}

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		cleanup()
		return nil, models.NewError(models.ErrInvalidBuildContext, "build image", err)
	}

	remove := true
	if req.Remove != nil {
		remove = *req.Remove
	}

	opts := types.ImageBuildOptions{
		Tags:        req.Tags,
		Dockerfile:  req.Dockerfile,
		BuildArgs:   req.BuildArgs,
		Labels:      req.Labels,
		Target:      req.Target,
		NoCache:     req.NoCache,
		PullParent:  req.Pull,
		Remove:      remove,
		ForceRemove: req.ForceRemove,
	}

	name := strings.Join(req.Tags, ",")
	body, err := b.runtime.BuildImage(ctx, buildContext, opts)
	if err != nil {
		buildContext.Close()
		cleanup()
		return nil, b.logAction("build", "", name, err)
	}

	b.logger.WithFields(logrus.Fields{
		"tags":    req.Tags,
		"context": contextDir,
	}).Info("Started building image")

	return newProgressStream("build image", body, b.logger, func(err error, imageID string) error {
		buildContext.Close()
		cleanup()
		if err == nil {
			b.logger.WithField("image", imageID).Info("Image built")
		}
		return b.logAction("build", imageID, name, err)
	}), nil
}

// resolveContext returns the local build context directory. A local path must exist
// before anything is sent to the runtime.
func (b *imageBuilder) resolveContext(ctx context.Context, req models.BuildRequest) (string, func(), error) {
	noop := func() {}

	if req.GitURL != "" {
		if b.sources == nil {
			return "", noop, models.InvalidInput("build image", "git build sources are not enabled")
		}
		dir, err := b.sources.Clone(ctx, req.GitURL, req.GitRef)
		if err != nil {
			return "", noop, models.NewError(models.ErrInvalidBuildContext, "build image", err)
		}
		return dir, func() { os.RemoveAll(dir) }, nil
	}

	if strings.TrimSpace(req.ContextPath) == "" {
		return "", noop, models.InvalidInput("build image", "build context is required")
	}

	info, err := os.Stat(req.ContextPath)
	if err != nil {
		return "", noop, models.NewError(models.ErrInvalidBuildContext, "build image", err)
	}
	if !info.IsDir() {
		return "", noop, &models.Error{
			Kind:    models.ErrInvalidBuildContext,
			Op:      "build image",
			Message: fmt.Sprintf("%s is not a directory", req.ContextPath),
		}
	}
	return req.ContextPath, noop, nil
}

type imageTransfer struct {
	*imageDeps
	tagger *imageTagger
}

func (t *imageTransfer) export(ctx context.Context, ids []string) (io.ReadCloser, error) {
	switch len(ids) {
	case 0:
		return nil, models.InvalidInput("export images", "at least one image id is required")
	case 1:
	default:
		return nil, models.InvalidInput("export images", "multiple image export not implemented")
	}
	if strings.TrimSpace(ids[0]) == "" {
		return nil, models.InvalidInput("export images", "image id is required")
	}

	stream, err := t.runtime.SaveImages(ctx, ids)
	if err != nil {
		return nil, t.logAction("export", ids[0], "", err)
	}
	t.logAction("export", ids[0], "", nil)
	return stream, nil
}

func (t *imageTransfer) load(ctx context.Context, req models.ImportRequest) (*ProgressStream, error) {
	source := req.Source
	var file *os.File

	if source == nil {
		if strings.TrimSpace(req.Path) == "" {
			return nil, models.InvalidInput("import image", "import source is required")
		}
		f, err := os.Open(req.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, models.InvalidInput("import image", "import source %s does not exist", req.Path)
			}
			return nil, models.NewError(models.ErrInvalidInput, "import image", err)
		}
		file = f
		source = f
	}

	closeFile := func() {
		if file != nil {
			file.Close()
		}
	}

	body, err := t.runtime.LoadImage(ctx, source)
	if err != nil {
		closeFile()
		return nil, t.logAction("import", "", req.Path, err)
	}

	return newProgressStream("import image", body, t.logger, func(err error, imageID string) error {
		closeFile()
		if err == nil && req.Repo != "" {
			if imageID == "" {
				err = &models.Error{Kind: models.ErrRuntimeError, Op: "import image", Message: "runtime did not report the loaded image"}
			} else {
				err = t.tagger.tag(ctx, imageID, req.Repo, req.Tag)
			}
		}
		return t.logAction("import", imageID, req.Repo, err)
	}), nil
}

type imageMaintenance struct{ *imageDeps }

func (m *imageMaintenance) prune(ctx context.Context, pruneFilters map[string][]string) (*models.PruneResult, error) {
	result, err := m.runtime.PruneImages(ctx, toFilterArgs(pruneFilters))
	if err != nil {
		return nil, m.logAction("prune", "all", "", err)
	}

	m.logger.WithFields(logrus.Fields{
		"deleted":         len(result.ImagesDeleted),
		"space_reclaimed": result.SpaceReclaimed,
	}).Info("Pruned images")
	m.logAction("prune", "all", "", nil)
	return result, nil
}
