package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/middleware"
)

// JobsHandler implements /jobs and the ingest entry points spec.md §6.1
// groups with it (/youtube/download).
type JobsHandler struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

func NewJobsHandler(coord *coordinator.Coordinator, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{coord: coord, logger: logger}
}

func (h *JobsHandler) List(c *gin.Context) {
	jobs, err := h.coord.ListJobs(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.coord.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Status summarizes job counts by status, for dashboard polling without
// pulling the full job list.
func (h *JobsHandler) Status(c *gin.Context) {
	jobs, err := h.coord.ListJobs(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	counts := map[string]int{}
	for _, j := range jobs {
		counts[string(j.Status)]++
	}
	c.JSON(http.StatusOK, gin.H{"total": len(jobs), "byStatus": counts})
}

func (h *JobsHandler) Cancel(c *gin.Context) {
	if err := h.coord.CancelJob(c.Request.Context(), c.Param("id")); err != nil {
		middleware.HandleError(c, err)
		return
	}
	job, err := h.coord.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobsHandler) Dismiss(c *gin.Context) {
	if err := h.coord.DismissJob(c.Request.Context(), c.Param("id")); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// youtubeDownloadRequest is the body for POST /youtube/download, per
// spec.md §6.1 scenario 1: songId must already exist.
type youtubeDownloadRequest struct {
	SongID  string `json:"songId" binding:"required"`
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
}

// YouTubeDownload enqueues a youtube-kind job for an already-created Song.
func (h *JobsHandler) YouTubeDownload(c *gin.Context) {
	var req youtubeDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, apperrors.Validationf("MISSING_PARAMETERS", err.Error()))
		return
	}
	if req.VideoID == "" && req.URL == "" {
		middleware.HandleError(c, apperrors.Validationf("MISSING_PARAMETERS", "videoId or url is required"))
		return
	}

	jobID, err := h.coord.EnqueueYouTubeJob(c.Request.Context(), req.SongID, req.VideoID, req.Title, req.Artist)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Kind == apperrors.NotFound {
			middleware.HandleError(c, apperrors.Validationf("RESOURCE_NOT_FOUND", "%s", appErr.Message))
			return
		}
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": jobID, "status": "pending"})
}

// uploadJobRequest is the body accepted once the multipart file has
// already been written to disk by the caller (file upload transport is
// out of scope, per spec.md §1's named collaborators).
type uploadJobRequest struct {
	SongID   string `json:"songId" binding:"required"`
	FilePath string `json:"filePath" binding:"required"`
}

func (h *JobsHandler) UploadJob(c *gin.Context) {
	var req uploadJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, apperrors.Validationf("MISSING_PARAMETERS", err.Error()))
		return
	}

	jobID, err := h.coord.EnqueueUploadJob(c.Request.Context(), req.SongID, req.FilePath)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": jobID, "status": "pending"})
}
