package service

import (
	"context"
	"io"
	"strings"
	"time"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/sirupsen/logrus"
)

const (
	defaultTag         = "latest"
	defaultSearchLimit = 25
	maxSearchLimit     = 100
)

// ImageRuntime is the part of the runtime adapter used for images.
type ImageRuntime interface {
	ListImages(ctx context.Context, all bool) ([]image.Summary, error)
	PullImage(ctx context.Context, ref string, auth *models.RegistryAuth) (io.ReadCloser, error)
	BuildImage(ctx context.Context, buildContext io.Reader, opts types.ImageBuildOptions) (io.ReadCloser, error)
	RemoveImage(ctx context.Context, id string, force, noprune bool) ([]image.DeleteResponse, error)
	InspectImage(ctx context.Context, id string) (*models.ImageDetail, error)
	TagImage(ctx context.Context, source, target string) error
	SearchImages(ctx context.Context, term string, limit int, args filters.Args) ([]registry.SearchResult, error)
	SaveImages(ctx context.Context, ids []string) (io.ReadCloser, error)
	LoadImage(ctx context.Context, input io.Reader) (io.ReadCloser, error)
	PruneImages(ctx context.Context, args filters.Args) (*models.PruneResult, error)
}

// BuildSource fetches a remote build context into a local directory.
type BuildSource interface {
	Clone(ctx context.Context, url, ref string) (string, error)
}

// imageDeps is shared by the image helpers.
type imageDeps struct {
	runtime ImageRuntime
	actions ActionRecorder
	logger  *logrus.Logger
}

func (d *imageDeps) logAction(action, imageID, imageName string, err error) error {
	recordAction(d.actions, d.logger, &models.ActionLog{
		ActionType:   action,
		ResourceType: "image",
		ResourceID:   imageID,
		ResourceName: imageName,
		Success:      err == nil,
		ExecutedAt:   time.Now(),
	}, err)
	return err
}

// ImageService exposes the image lifecycle. Each group of operations lives in its own
// helper; the service only delegates.
type ImageService struct {
	lister      *imageLister
	puller      *imagePuller
	builder     *imageBuilder
	remover     *imageRemover
	inspector   *imageInspector
	tagger      *imageTagger
	searcher    *imageSearcher
	transfer    *imageTransfer
	maintenance *imageMaintenance
}

// NewImageService creates a new image service. actions and sources may be nil; without
// sources, builds from a git URL are rejected.
func NewImageService(runtime ImageRuntime, actions ActionRecorder, sources BuildSource, logger *logrus.Logger) *ImageService {
	deps := &imageDeps{runtime: runtime, actions: actions, logger: logger}
	tagger := &imageTagger{deps}

	return &ImageService{
		lister:      &imageLister{deps},
		puller:      &imagePuller{deps},
		builder:     &imageBuilder{imageDeps: deps, sources: sources},
		remover:     &imageRemover{deps},
		inspector:   &imageInspector{deps},
		tagger:      tagger,
		searcher:    &imageSearcher{deps},
		transfer:    &imageTransfer{imageDeps: deps, tagger: tagger},
		maintenance: &imageMaintenance{deps},
	}
}

// ListImages lists images, intermediate ones included when all is set.
func (s *ImageService) ListImages(ctx context.Context, all bool) ([]models.Image, error) {
	return s.lister.list(ctx, all)
}

// PullImage starts a pull and returns its progress.
func (s *ImageService) PullImage(ctx context.Context, req models.PullRequest) (*ProgressStream, error) {
	return s.puller.pull(ctx, req)
}

// BuildImage starts a build and returns its progress. The built image id is available
// from the stream once it ends.
func (s *ImageService) BuildImage(ctx context.Context, req models.BuildRequest) (*ProgressStream, error) {
	return s.builder.build(ctx, req)
}

// RemoveImage removes an image.
func (s *ImageService) RemoveImage(ctx context.Context, id string, force, noprune bool) (*models.RemoveResult, error) {
	return s.remover.remove(ctx, id, force, noprune)
}

// InspectImage returns the full metadata of an image.
func (s *ImageService) InspectImage(ctx context.Context, id string) (*models.ImageDetail, error) {
	return s.inspector.inspect(ctx, id)
}

// GetImageDetails returns the summary view of an image from a single inspection.
func (s *ImageService) GetImageDetails(ctx context.Context, id string) (*models.ImageSummary, error) {
	return s.inspector.details(ctx, id)
}

// TagImage adds the reference repo:tag to an image.
func (s *ImageService) TagImage(ctx context.Context, id, repo, tag string) error {
	return s.tagger.tag(ctx, id, repo, tag)
}

// UntagImage removes the reference repo:tag without deleting image content.
func (s *ImageService) UntagImage(ctx context.Context, id, repo, tag string) error {
	return s.tagger.untag(ctx, id, repo, tag)
}

// SearchImages searches the registry.
func (s *ImageService) SearchImages(ctx context.Context, term string, limit int, searchFilters map[string][]string) ([]models.SearchResult, error) {
	return s.searcher.search(ctx, term, limit, searchFilters)
}

// ExportImages returns a tar stream of the given images. Only single image export is supported.
func (s *ImageService) ExportImages(ctx context.Context, ids []string) (io.ReadCloser, error) {
	return s.transfer.export(ctx, ids)
}

// ImportImage loads an image tarball and returns the load progress.
func (s *ImageService) ImportImage(ctx context.Context, req models.ImportRequest) (*ProgressStream, error) {
	return s.transfer.load(ctx, req)
}

// PruneImages removes unused images.
func (s *ImageService) PruneImages(ctx context.Context, pruneFilters map[string][]string) (*models.PruneResult, error) {
	return s.maintenance.prune(ctx, pruneFilters)
}

type imageLister struct{ *imageDeps }

func (l *imageLister) list(ctx context.Context, all bool) ([]models.Image, error) {
	images, err := l.runtime.ListImages(ctx, all)
	if err != nil {
		return nil, err
	}

	result := make([]models.Image, 0, len(images))
	for _, img := range images {
		repo, tag := models.NoneRef, models.NoneRef
		if len(img.RepoTags) > 0 {
			repo, tag = splitReference(img.RepoTags[0])
		}
		result = append(result, models.Image{
			ID:         img.ID,
			Repository: repo,
			Tag:        tag,
			Size:       img.Size,
			Created:    img.Created,
		})
	}
	return result, nil
}

// splitReference splits "repo:tag" on the tag separator, ignoring a registry port.
// Missing or unresolvable parts come back as models.NoneRef.
func splitReference(ref string) (string, string) {
	repo, tag := ref, ""
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		repo, tag = ref[:i], ref[i+1:]
	}
	if repo == "" {
		repo = models.NoneRef
	}
	if tag == "" {
		tag = models.NoneRef
	}
	return repo, tag
}

// imageRef appends tag (default latest) to name unless name already carries a tag or digest.
func imageRef(name, tag string) string {
	if strings.Contains(name, "@") {
		return name
	}
	if tag == "" {
		if strings.LastIndex(name, ":") > strings.LastIndex(name, "/") {
			return name
		}
		tag = defaultTag
	}
	return name + ":" + tag
}

type imageRemover struct{ *imageDeps }

func (r *imageRemover) remove(ctx context.Context, id string, force, noprune bool) (*models.RemoveResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.InvalidInput("remove image", "image id is required")
	}

	resp, err := r.runtime.RemoveImage(ctx, id, force, noprune)
	if err != nil {
		return nil, r.logAction("remove", id, "", err)
	}

	result := &models.RemoveResult{Deleted: []string{}, Untagged: []string{}}
	for _, item := range resp {
		if item.Deleted != "" {
			result.Deleted = append(result.Deleted, item.Deleted)
		}
		if item.Untagged != "" {
			result.Untagged = append(result.Untagged, item.Untagged)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"image":    id,
		"deleted":  len(result.Deleted),
		"untagged": len(result.Untagged),
	}).Info("Image removed")
	r.logAction("remove", id, "", nil)
	return result, nil
}

type imageInspector struct{ *imageDeps }

func (i *imageInspector) inspect(ctx context.Context, id string) (*models.ImageDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.InvalidInput("inspect image", "image id is required")
	}
	return i.runtime.InspectImage(ctx, id)
}

func (i *imageInspector) details(ctx context.Context, id string) (*models.ImageSummary, error) {
	detail, err := i.inspect(ctx, id)
	if err != nil {
		return nil, err
	}

	tags := detail.RepoTags
	if tags == nil {
		tags = []string{}
	}
	return &models.ImageSummary{
		ID:           detail.ID,
		Tags:         tags,
		Size:         detail.Size,
		Created:      detail.Created,
		Architecture: detail.Architecture,
		Os:           detail.Os,
		Author:       detail.Author,
		Labels:       detail.Labels,
		LayerCount:   len(detail.Layers),
	}, nil
}

type imageTagger struct{ *imageDeps }

func (t *imageTagger) tag(ctx context.Context, id, repo, tag string) error {
	if strings.TrimSpace(id) == "" {
		return models.InvalidInput("tag image", "image id is required")
	}
	if strings.TrimSpace(repo) == "" {
		return models.InvalidInput("tag image", "repository is required")
	}
	if tag == "" {
		tag = defaultTag
	}

	target := repo + ":" + tag
	err := t.runtime.TagImage(ctx, id, target)
	if err == nil {
		t.logger.WithField("image", id).Infof("Tagged image as %s", target)
	}
	return t.logAction("tag", id, target, err)
}

func (t *imageTagger) untag(ctx context.Context, id, repo, tag string) error {
	if strings.TrimSpace(repo) == "" {
		return models.InvalidInput("untag image", "repository is required")
	}
	if tag == "" {
		tag = defaultTag
	}

	ref := repo + ":" + tag
	_, err := t.runtime.RemoveImage(ctx, ref, false, true)
	if err == nil {
		t.logger.WithField("image", id).Infof("Removed tag %s", ref)
	}
	return t.logAction("untag", id, ref, err)
}

type imageSearcher struct{ *imageDeps }

func (s *imageSearcher) search(ctx context.Context, term string, limit int, searchFilters map[string][]string) ([]models.SearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return nil, models.InvalidInput("search images", "search term is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.runtime.SearchImages(ctx, term, limit, toFilterArgs(searchFilters))
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.SearchResult{
			Name:        r.Name,
			Description: r.Description,
			Stars:       r.StarCount,
			Official:    r.IsOfficial,
			Automated:   r.IsAutomated,
		})
	}
	return out, nil
}

func toFilterArgs(values map[string][]string) filters.Args {
	args := filters.NewArgs()
	for key, vals := range values {
		for _, v := range vals {
			args.Add(key, v)
		}
	}
	return args
}
