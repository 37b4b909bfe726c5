package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/middleware"
)

// QueueHandler implements /karaoke-queue, per spec.md §6.1/§4.7.
type QueueHandler struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

func NewQueueHandler(coord *coordinator.Coordinator, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{coord: coord, logger: logger}
}

func (h *QueueHandler) List(c *gin.Context) {
	queue, err := h.coord.ListQueue(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

type addToQueueRequest struct {
	SongID     string `json:"songId" binding:"required"`
	SingerName string `json:"singerName" binding:"required"`
}

func (h *QueueHandler) Add(c *gin.Context) {
	var req addToQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, apperrors.Validationf("MISSING_PARAMETERS", err.Error()))
		return
	}

	entry, err := h.coord.AddToQueue(c.Request.Context(), req.SongID, req.SingerName)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *QueueHandler) Remove(c *gin.Context) {
	entryID, err := strconv.ParseInt(c.Param("entryId"), 10, 64)
	if err != nil {
		middleware.HandleError(c, apperrors.Validationf("INVALID_ENTRY_ID", "entryId must be an integer"))
		return
	}
	if err := h.coord.RemoveEntry(c.Request.Context(), entryID); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderQueueRequest struct {
	EntryOrder []int64 `json:"entryOrder" binding:"required"`
}

func (h *QueueHandler) Reorder(c *gin.Context) {
	var req reorderQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, apperrors.Validationf("MISSING_PARAMETERS", err.Error()))
		return
	}

	queue, err := h.coord.ReorderQueue(c.Request.Context(), req.EntryOrder)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// Advance is not a named endpoint in spec.md §6.1 but is exposed for
// a karaoke host UI to move the queue forward; it mirrors Coordinator's
// AdvanceQueue 1:1.
func (h *QueueHandler) Advance(c *gin.Context) {
	entry, err := h.coord.AdvanceQueue(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
