package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"nfcunha/deckhand/core/models"
	"nfcunha/deckhand/core/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ImageHandler handles image-related HTTP requests.
type ImageHandler struct {
	imageService *service.ImageService
	logger       *logrus.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(imageService *service.ImageService, logger *logrus.Logger) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		logger:       logger,
	}
}

// ListImages handles GET /images
// Query parameters:
//   - all: boolean (include intermediate images)
func (h *ImageHandler) ListImages(c *gin.Context) {
	all := c.DefaultQuery("all", "false") == "true"

	images, err := h.imageService.ListImages(c.Request.Context(), all)
	if err != nil {
		respondError(c, "Failed to list images", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"count":  len(images),
	})
}

// InspectImage handles GET /images/:id/inspect
func (h *ImageHandler) InspectImage(c *gin.Context) {
	detail, err := h.imageService.InspectImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to inspect image", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetImageDetails handles GET /images/:id/details
func (h *ImageHandler) GetImageDetails(c *gin.Context) {
	summary, err := h.imageService.GetImageDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get image details", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// PullImage handles POST /images/pull
// Progress is streamed as Server-Sent Events.
func (h *ImageHandler) PullImage(c *gin.Context) {
	var req models.PullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	stream, err := h.imageService.PullImage(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Failed to start image pull", err)
		return
	}

	h.streamProgress(c, stream, "Pull completed successfully")
}

// BuildImage handles POST /images/build
// Progress is streamed as Server-Sent Events.
func (h *ImageHandler) BuildImage(c *gin.Context) {
	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	stream, err := h.imageService.BuildImage(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Failed to start image build", err)
		return
	}

	h.streamProgress(c, stream, "Build completed successfully")
}

// ImportImage handles POST /images/import
// A JSON body {"path", "repo", "tag"} loads an archive from the server filesystem;
// any other body is read as the image archive itself, with repo and tag taken
// from the query string.
func (h *ImageHandler) ImportImage(c *gin.Context) {
	var req models.ImportRequest

	if c.ContentType() == gin.MIMEJSON {
		var body struct {
			Path string `json:"path"`
			Repo string `json:"repo"`
			Tag  string `json:"tag"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
		req = models.ImportRequest{Path: body.Path, Repo: body.Repo, Tag: body.Tag}
	} else {
		req = models.ImportRequest{
			Source: c.Request.Body,
			Repo:   c.Query("repo"),
			Tag:    c.Query("tag"),
		}
	}

	stream, err := h.imageService.ImportImage(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Failed to start image import", err)
		return
	}

	h.streamProgress(c, stream, "Import completed successfully")
}

// RemoveImage handles DELETE /images/:id
// Query parameters:
//   - force: boolean (remove even if used by stopped containers)
//   - noprune: boolean (keep untagged parents)
func (h *ImageHandler) RemoveImage(c *gin.Context) {
	imageID := c.Param("id")
	force := c.DefaultQuery("force", "false") == "true"
	noprune := c.DefaultQuery("noprune", "false") == "true"

	result, err := h.imageService.RemoveImage(c.Request.Context(), imageID, force, noprune)
	if err != nil {
		respondError(c, "Failed to remove image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Image removed successfully",
		"id":       imageID,
		"deleted":  result.Deleted,
		"untagged": result.Untagged,
	})
}

type tagRequest struct {
	Repo string `json:"repo" form:"repo"`
	Tag  string `json:"tag" form:"tag"`
}

// TagImage handles POST /images/:id/tag
func (h *ImageHandler) TagImage(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	imageID := c.Param("id")
	if err := h.imageService.TagImage(c.Request.Context(), imageID, req.Repo, req.Tag); err != nil {
		respondError(c, "Failed to tag image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Image tagged successfully",
		"id":      imageID,
	})
}

// UntagImage handles DELETE /images/:id/tag?repo=&tag=
func (h *ImageHandler) UntagImage(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	imageID := c.Param("id")
	if err := h.imageService.UntagImage(c.Request.Context(), imageID, req.Repo, req.Tag); err != nil {
		respondError(c, "Failed to untag image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Image untagged successfully",
		"id":      imageID,
	})
}

// SearchImages handles GET /images/search
// Query parameters:
//   - term: string (required)
//   - limit: integer (default 25, at most 100)
//   - filter: repeated key=value (e.g. is-official=true, stars=3)
func (h *ImageHandler) SearchImages(c *gin.Context) {
	term := c.Query("term")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	results, err := h.imageService.SearchImages(c.Request.Context(), term, limit, parseFilters(c.QueryArray("filter")))
	if err != nil {
		respondError(c, "Failed to search images", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
		"term":    term,
	})
}

// ExportImages handles POST /images/export
// Responds with the image tar archive.
func (h *ImageHandler) ExportImages(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	archive, err := h.imageService.ExportImages(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, "Failed to export images", err)
		return
	}
	defer archive.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.tar", archiveName(req.IDs[0])))
	c.Header("Content-Type", "application/x-tar")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, archive); err != nil {
		h.logger.WithFields(logrus.Fields{"image": req.IDs[0], "error": err}).Warn("Image export interrupted")
	}
}

// PruneImages handles POST /images/prune
// An optional JSON body {"filters": {"dangling": ["false"]}} narrows the prune.
func (h *ImageHandler) PruneImages(c *gin.Context) {
	var req struct {
		Filters map[string][]string `json:"filters"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	result, err := h.imageService.PruneImages(c.Request.Context(), req.Filters)
	if err != nil {
		respondError(c, "Failed to prune images", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Images pruned successfully",
		"images_deleted":     result.ImagesDeleted,
		"space_reclaimed":    result.SpaceReclaimed,
		"space_reclaimed_mb": float64(result.SpaceReclaimed) / 1024 / 1024,
	})
}

// streamProgress relays progress events as SSE "progress" events, then ends with a
// single "complete" or "error" event. A client disconnect tears the upstream down.
func (h *ImageHandler) streamProgress(c *gin.Context, stream *service.ProgressStream, completed string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	defer stream.Close()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-stream.Events:
			if ok {
				c.SSEvent("progress", event)
				return true
			}
			if err := stream.Err(); err != nil {
				c.SSEvent("error", gin.H{"error": err.Error()})
				return false
			}
			c.SSEvent("complete", gin.H{
				"status":  completed,
				"imageId": stream.ImageID(),
			})
			return false

		case <-clientGone:
			return false
		}
	})
}

func parseFilters(values []string) map[string][]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			continue
		}
		out[key] = append(out[key], value)
	}
	return out
}

// archiveName turns an image reference into a safe file name.
func archiveName(ref string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(ref)
	if name == "" {
		return "image"
	}
	return name
}
