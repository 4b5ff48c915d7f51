package handler

import (
	"nfcunha/deckhand/handler/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups every handler mounted by Register.
type Handlers struct {
	Health     *HealthHandler
	Containers *ContainerHandler
	Logs       *LogHandler
	Images     *ImageHandler
	Actions    *ActionHandler
	Audit      *AuditHandler
	Realtime   *RealtimeHandler
}

// Register mounts the API routes on group. Health stays public; everything else
// goes through auth, and mutating routes require the admin role.
func Register(group *gin.RouterGroup, h Handlers, auth *middleware.Auth) {
	group.GET("/health", h.Health.Health)

	api := group.Group("", auth.Authenticate())
	admin := auth.RequireRole(middleware.RoleAdmin)

	api.GET("/dashboard/summary", h.Containers.GetDashboardSummary)
	api.GET("/actions", h.Actions.ListActions)
	api.GET("/events", h.Audit.ListEvents)
	api.GET("/ws", h.Realtime.Serve)

	api.GET("/containers", h.Containers.ListContainers)
	containers := api.Group("/containers/:id", middleware.ValidateContainerID())
	{
		containers.GET("", h.Containers.GetContainer)
		containers.GET("/stats", h.Containers.GetStats)
		containers.GET("/logs", h.Logs.GetLogs)
		containers.GET("/logs/download", h.Logs.DownloadLogs)
		containers.GET("/actions", h.Actions.ListContainerActions)
		containers.GET("/health", h.Audit.GetContainerHealth)
		containers.POST("/start", admin, h.Containers.Command("start"))
		containers.POST("/stop", admin, h.Containers.Command("stop"))
		containers.POST("/restart", admin, h.Containers.Command("restart"))
		containers.DELETE("", admin, h.Containers.Command("delete"))
	}

	images := api.Group("/images")
	{
		images.GET("", h.Images.ListImages)
		images.GET("/search", h.Images.SearchImages)
		images.GET("/:id/inspect", h.Images.InspectImage)
		images.GET("/:id/details", h.Images.GetImageDetails)
		images.POST("/pull", admin, h.Images.PullImage)
		images.POST("/build", admin, h.Images.BuildImage)
		images.POST("/import", admin, h.Images.ImportImage)
		images.POST("/export", admin, h.Images.ExportImages)
		images.POST("/prune", admin, h.Images.PruneImages)
		images.POST("/:id/tag", admin, h.Images.TagImage)
		images.DELETE("/:id/tag", admin, h.Images.UntagImage)
		images.DELETE("/:id", admin, h.Images.RemoveImage)
	}
}
