package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/middleware"
)

// LyricsHandler implements /lyrics, per spec.md §6.1.
type LyricsHandler struct {
	coord    *coordinator.Coordinator
	provider collaborators.LyricsProvider
	logger   *zap.Logger
}

func NewLyricsHandler(coord *coordinator.Coordinator, provider collaborators.LyricsProvider, logger *zap.Logger) *LyricsHandler {
	return &LyricsHandler{coord: coord, provider: provider, logger: logger}
}

func (h *LyricsHandler) Get(c *gin.Context) {
	lyrics, err := h.coord.GetLyrics(c.Request.Context(), c.Param("songId"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lyrics)
}

func (h *LyricsHandler) Set(c *gin.Context) {
	var lyrics entities.Lyrics
	if err := c.ShouldBindJSON(&lyrics); err != nil {
		middleware.HandleError(c, apperrors.Validationf("INVALID_BODY", err.Error()))
		return
	}
	lyrics.SongID = c.Param("songId")

	if err := h.coord.SetLyrics(c.Request.Context(), &lyrics); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lyrics)
}

// Search proxies directly to the LyricsProvider; it never touches Store,
// so it bypasses Coordinator (spec.md §1 names LyricsProvider an external
// collaborator consulted only by EnrichLyrics and this read-only proxy).
func (h *LyricsHandler) Search(c *gin.Context) {
	candidates, err := h.provider.Search(c.Request.Context(), c.Query("artist"), c.Query("title"), c.Query("album"))
	if err != nil {
		middleware.HandleError(c, apperrors.UpstreamErr(err, "LYRICS_UPSTREAM_ERROR", "lyrics search failed"))
		return
	}
	c.JSON(http.StatusOK, candidates)
}
