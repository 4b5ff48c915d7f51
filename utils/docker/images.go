package docker

import (
	"context"
	"io"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/sirupsen/logrus"
)

// ListImages lists images, intermediate layers included when all is set.
func (c *Client) ListImages(ctx context.Context, all bool) ([]image.Summary, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	images, err := c.api.ImageList(ctx, image.ListOptions{All: all})
	if err != nil {
		return nil, c.classify("list images", err)
	}
	return images, nil
}

// PullImage starts pulling ref and returns the JSON progress stream.
func (c *Client) PullImage(ctx context.Context, ref string, auth *models.RegistryAuth) (io.ReadCloser, error) {
	var opts image.PullOptions
	if auth != nil {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			ServerAddress: auth.ServerAddress,
			IdentityToken: auth.IdentityToken,
		})
		if err != nil {
			return nil, models.NewError(models.ErrInvalidInput, "pull image", err)
		}
		opts.RegistryAuth = encoded
	}

	c.logger.WithField("image", ref).Debug("Pulling image")
	return c.startStream(ctx, "pull image", func(ctx context.Context) (io.ReadCloser, error) {
		return c.api.ImagePull(ctx, ref, opts)
	})
}

// BuildImage sends the tarred build context to the daemon and returns the JSON progress stream.
func (c *Client) BuildImage(ctx context.Context, buildContext io.Reader, opts types.ImageBuildOptions) (io.ReadCloser, error) {
	c.logger.WithFields(logrus.Fields{
		"tags":       opts.Tags,
		"dockerfile": opts.Dockerfile,
	}).Debug("Building image")

	return c.startStream(ctx, "build image", func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := c.api.ImageBuild(ctx, buildContext, opts)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

// RemoveImage removes an image. Untagged parents are pruned unless noprune is set.
func (c *Client) RemoveImage(ctx context.Context, id string, force, noprune bool) ([]image.DeleteResponse, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ImageRemove(ctx, id, image.RemoveOptions{
		Force:         force,
		PruneChildren: !noprune,
	})
	if err != nil {
		return nil, c.classify("remove image", err)
	}
	return resp, nil
}

// InspectImage returns the full metadata of an image.
func (c *Client) InspectImage(ctx context.Context, id string) (*models.ImageDetail, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	inspect, _, err := c.api.ImageInspectWithRaw(ctx, id)
	if err != nil {
		return nil, c.classify("inspect image", err)
	}

	detail := &models.ImageDetail{
		ID:            inspect.ID,
		RepoTags:      inspect.RepoTags,
		RepoDigests:   inspect.RepoDigests,
		Parent:        inspect.Parent,
		Comment:       inspect.Comment,
		Created:       inspect.Created,
		DockerVersion: inspect.DockerVersion,
		Author:        inspect.Author,
		Architecture:  inspect.Architecture,
		Os:            inspect.Os,
		Size:          inspect.Size,
		Layers:        inspect.RootFS.Layers,
	}

	if cfg := inspect.Config; cfg != nil {
		detail.Labels = cfg.Labels
		detail.Env = cfg.Env
		detail.Cmd = cfg.Cmd
		detail.Entrypoint = cfg.Entrypoint
		detail.WorkingDir = cfg.WorkingDir
		detail.User = cfg.User
		for port := range cfg.ExposedPorts {
			detail.ExposedPorts = append(detail.ExposedPorts, string(port))
		}
		for vol := range cfg.Volumes {
			detail.Volumes = append(detail.Volumes, vol)
		}
	}

	return detail, nil
}

// TagImage points target (repo:tag) at source.
func (c *Client) TagImage(ctx context.Context, source, target string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	return c.classify("tag image", c.api.ImageTag(ctx, source, target))
}

// SearchImages queries the configured registry.
func (c *Client) SearchImages(ctx context.Context, term string, limit int, args filters.Args) ([]registry.SearchResult, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	results, err := c.api.ImageSearch(ctx, term, registry.SearchOptions{
		Limit:   limit,
		Filters: args,
	})
	if err != nil {
		return nil, c.classify("search images", err)
	}
	return results, nil
}

// SaveImages returns a tar stream holding the given images.
func (c *Client) SaveImages(ctx context.Context, ids []string) (io.ReadCloser, error) {
	return c.startStream(ctx, "export image", func(ctx context.Context) (io.ReadCloser, error) {
		return c.api.ImageSave(ctx, ids)
	})
}

// LoadImage loads an image tarball and returns the JSON progress stream.
func (c *Client) LoadImage(ctx context.Context, input io.Reader) (io.ReadCloser, error) {
	return c.startStream(ctx, "import image", func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := c.api.ImageLoad(ctx, input, false)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

// PruneImages removes unused images matching args.
func (c *Client) PruneImages(ctx context.Context, args filters.Args) (*models.PruneResult, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	report, err := c.api.ImagesPrune(ctx, args)
	if err != nil {
		return nil, c.classify("prune images", err)
	}

	result := &models.PruneResult{
		ImagesDeleted:  []string{},
		SpaceReclaimed: report.SpaceReclaimed,
	}
	for _, item := range report.ImagesDeleted {
		if item.Deleted != "" {
			result.ImagesDeleted = append(result.ImagesDeleted, item.Deleted)
		}
		if item.Untagged != "" {
			result.ImagesDeleted = append(result.ImagesDeleted, item.Untagged)
		}
	}
	return result, nil
}
