package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/middleware"
)

// MetadataHandler implements GET /metadata/search, a direct proxy to the
// MetadataProvider (spec.md §6.1).
type MetadataHandler struct {
	provider collaborators.MetadataProvider
	logger   *zap.Logger
}

func NewMetadataHandler(provider collaborators.MetadataProvider, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{provider: provider, logger: logger}
}

func (h *MetadataHandler) Search(c *gin.Context) {
	limit := intQuery(c, "limit", 5)
	candidates, err := h.provider.Search(c.Request.Context(), c.Query("artist"), c.Query("title"), c.Query("album"), limit)
	if err != nil {
		middleware.HandleError(c, apperrors.UpstreamErr(err, "METADATA_UPSTREAM_ERROR", "metadata search failed"))
		return
	}
	c.JSON(http.StatusOK, candidates)
}
