// Package api wires the HTTP surface from spec.md §6: handler groups
// bound to gin routes, behind the shared middleware stack.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/domain/repositories"
	"github.com/openkaraoke/studio/internal/metrics"
	"github.com/openkaraoke/studio/internal/middleware"
	"github.com/openkaraoke/studio/internal/pushhub"
	"github.com/openkaraoke/studio/internal/storage"
)

// Deps collects everything the router needs to bind handlers.
type Deps struct {
	Coordinator      *coordinator.Coordinator
	Store            repositories.Store
	Layout           *storage.Layout
	LyricsProvider   collaborators.LyricsProvider
	MetadataProvider collaborators.MetadataProvider
	Hub              *pushhub.Hub
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
	AllowedOrigins   []string
}

// NewRouter builds the gin engine serving every endpoint in spec.md §6.1
// plus the websocket channels from §6.2 and the /metrics endpoint.
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.Logger(deps.Logger),
		middleware.CORS(deps.AllowedOrigins),
		deps.Metrics.Middleware(),
	)

	engine.GET("/metrics", deps.Metrics.Handler())

	engine.GET("/api/health", func(c *gin.Context) {
		if err := deps.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	songs := NewSongsHandler(deps.Coordinator, deps.Layout, deps.Logger)
	jobs := NewJobsHandler(deps.Coordinator, deps.Logger)
	queue := NewQueueHandler(deps.Coordinator, deps.Logger)
	lyrics := NewLyricsHandler(deps.Coordinator, deps.LyricsProvider, deps.Logger)
	metadata := NewMetadataHandler(deps.MetadataProvider, deps.Logger)

	routes := engine.Group("/api")
	{
		routes.GET("/songs", songs.List)
		routes.GET("/songs/search", songs.Search)
		routes.GET("/songs/artists", songs.Artists)
		routes.GET("/songs/by-artist/:artistName", songs.ByArtist)
		routes.POST("/songs", songs.Create)
		routes.GET("/songs/:id", songs.Get)
		routes.PATCH("/songs/:id", songs.Update)
		routes.DELETE("/songs/:id", songs.Delete)
		routes.GET("/songs/:id/download/:kind", songs.Download)
		routes.GET("/songs/:id/thumbnail", songs.Thumbnail)
		routes.GET("/songs/:id/cover.jpg", songs.Cover)

		routes.GET("/lyrics/search", lyrics.Search)
		routes.GET("/lyrics/:songId", lyrics.Get)
		routes.POST("/lyrics/:songId", lyrics.Set)

		routes.GET("/metadata/search", metadata.Search)

		routes.POST("/youtube/download", jobs.YouTubeDownload)
		routes.POST("/upload", jobs.UploadJob)

		routes.GET("/jobs", jobs.List)
		routes.GET("/jobs/status", jobs.Status)
		routes.GET("/jobs/:id", jobs.Get)
		routes.POST("/jobs/:id/cancel", jobs.Cancel)
		routes.POST("/jobs/:id/dismiss", jobs.Dismiss)

		routes.GET("/karaoke-queue", queue.List)
		routes.POST("/karaoke-queue", queue.Add)
		routes.DELETE("/karaoke-queue/:entryId", queue.Remove)
		routes.PUT("/karaoke-queue/reorder", queue.Reorder)
		routes.POST("/karaoke-queue/advance", queue.Advance)
	}

	engine.GET("/ws/jobs", deps.Hub.HandleJobs)
	engine.GET("/ws/performance", deps.Hub.HandlePerformance)

	return engine
}
