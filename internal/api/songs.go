package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/coordinator"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/middleware"
	"github.com/openkaraoke/studio/internal/storage"
)

// SongsHandler implements the /songs family of endpoints from spec.md §6.1.
type SongsHandler struct {
	coord  *coordinator.Coordinator
	layout *storage.Layout
	logger *zap.Logger
}

func NewSongsHandler(coord *coordinator.Coordinator, layout *storage.Layout, logger *zap.Logger) *SongsHandler {
	return &SongsHandler{coord: coord, layout: layout, logger: logger}
}

func (h *SongsHandler) List(c *gin.Context) {
	opts := listSongsOptions(c)
	page, err := h.coord.SearchSongs(c.Request.Context(), opts)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *SongsHandler) Search(c *gin.Context) {
	opts := listSongsOptions(c)
	opts.Query = c.Query("q")
	page, err := h.coord.SearchSongs(c.Request.Context(), opts)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *SongsHandler) Artists(c *gin.Context) {
	page, err := h.coord.ListArtists(c.Request.Context(), listArtistsOptions(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *SongsHandler) ByArtist(c *gin.Context) {
	page, err := h.coord.ListSongsByArtist(c.Request.Context(), c.Param("artistName"), listSongsOptions(c))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *SongsHandler) Get(c *gin.Context) {
	song, err := h.coord.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *SongsHandler) Create(c *gin.Context) {
	var input entities.CreateSongInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.HandleError(c, apperrors.Validationf("INVALID_BODY", err.Error()))
		return
	}

	id, err := h.coord.CreateSong(c.Request.Context(), input)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	song, err := h.coord.GetSong(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *SongsHandler) Update(c *gin.Context) {
	var patch entities.SongPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		middleware.HandleError(c, apperrors.Validationf("INVALID_BODY", err.Error()))
		return
	}

	song, err := h.coord.UpdateSong(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *SongsHandler) Delete(c *gin.Context) {
	if err := h.coord.DeleteSong(c.Request.Context(), c.Param("id")); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Download streams one of the three audio stems, per spec.md §6.1. The
// Song.Paths mapping is authoritative for readiness; a not-yet-populated
// key is a NotFound, not a missing file on disk.
func (h *SongsHandler) Download(c *gin.Context) {
	song, err := h.coord.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	var relPath string
	switch c.Param("kind") {
	case "original":
		relPath = song.Paths.Original
	case "vocals":
		relPath = song.Paths.Vocals
	case "instrumental":
		relPath = song.Paths.Instrumental
	default:
		middleware.HandleError(c, apperrors.Validationf("INVALID_DOWNLOAD_KIND", "unknown download kind %q", c.Param("kind")))
		return
	}
	if relPath == "" {
		middleware.HandleError(c, apperrors.NotFoundf("file", "song %q has no %s file yet", song.ID, c.Param("kind")))
		return
	}

	c.FileAttachment(h.layout.AbsolutePath(relPath), c.Param("kind")+".mp3")
}

// Thumbnail streams the song's cached thumbnail, falling back to 404 when
// none has been fetched yet.
func (h *SongsHandler) Thumbnail(c *gin.Context) {
	song, err := h.coord.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if song.Paths.Thumbnail == "" {
		middleware.HandleError(c, apperrors.NotFoundf("thumbnail", "song %q has no thumbnail yet", song.ID))
		return
	}
	path := h.layout.AbsolutePath(song.Paths.Thumbnail)
	if _, err := os.Stat(path); err != nil {
		middleware.HandleError(c, apperrors.NotFoundf("thumbnail", "thumbnail file missing for song %q", song.ID))
		return
	}
	c.File(path)
}

// Cover streams the song's cover art.
func (h *SongsHandler) Cover(c *gin.Context) {
	song, err := h.coord.GetSong(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	if song.Paths.Cover == "" {
		middleware.HandleError(c, apperrors.NotFoundf("cover", "song %q has no cover art yet", song.ID))
		return
	}
	c.File(h.layout.AbsolutePath(song.Paths.Cover))
}
