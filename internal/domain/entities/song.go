package entities

import "time"

// SongSource identifies where a Song's audio originated from.
type SongSource string

const (
	SourceUpload  SongSource = "upload"
	SourceYouTube SongSource = "youtube"
)

// SongStatus tracks a Song's processing lifecycle.
type SongStatus string

const (
	SongPending     SongStatus = "pending"
	SongDownloading SongStatus = "downloading"
	SongProcessing  SongStatus = "processing"
	SongCompleted   SongStatus = "completed"
	SongFailed      SongStatus = "failed"
)

// SongPaths maps logical file keys to relative paths under the song's
// directory in the library root. A key is absent until its file exists.
type SongPaths struct {
	Original     string `json:"original,omitempty" db:"path_original"`
	Vocals       string `json:"vocals,omitempty" db:"path_vocals"`
	Instrumental string `json:"instrumental,omitempty" db:"path_instrumental"`
	Cover        string `json:"cover,omitempty" db:"path_cover"`
	Thumbnail    string `json:"thumbnail,omitempty" db:"path_thumbnail"`
}

// ITunesIDs holds the iTunes catalog identifiers a MetadataProvider match
// contributes to a Song.
type ITunesIDs struct {
	TrackID      int64 `json:"trackId,omitempty" db:"itunes_track_id"`
	ArtistID     int64 `json:"artistId,omitempty" db:"itunes_artist_id"`
	CollectionID int64 `json:"collectionId,omitempty" db:"itunes_collection_id"`
}

// Thumbnail is one candidate thumbnail image reported by the Fetcher.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Song is the central library record. See spec.md §3.
type Song struct {
	ID                  string      `json:"id" db:"id"`
	Title               string      `json:"title" db:"title"`
	Artist              string      `json:"artist" db:"artist"`
	Album               string      `json:"album,omitempty" db:"album"`
	Year                int         `json:"year,omitempty" db:"year"`
	Genre               string      `json:"genre,omitempty" db:"genre"`
	Language            string      `json:"language,omitempty" db:"language"`
	DurationMs          int64       `json:"durationMs,omitempty" db:"duration_ms"`
	Source              SongSource  `json:"source" db:"source"`
	SourceURL           string      `json:"sourceUrl,omitempty" db:"source_url"`
	VideoID             string      `json:"videoId,omitempty" db:"video_id"`
	Status              SongStatus  `json:"status" db:"status"`
	Paths               SongPaths   `json:"paths"`
	ITunes              ITunesIDs   `json:"iTunesIds"`
	YouTubeThumbnails   []Thumbnail `json:"youtubeThumbnailUrls,omitempty" db:"-"`
	DateAdded           time.Time   `json:"dateAdded" db:"date_added"`
	Favorite            bool        `json:"favorite" db:"favorite"`
}

// IsComplete reports whether the invariant status=completed => paths set holds.
func (s *Song) IsComplete() bool {
	return s.Status == SongCompleted && s.Paths.Instrumental != "" && s.Paths.Vocals != ""
}

// SongPatch is a partial update to a Song; nil fields are left unchanged.
type SongPatch struct {
	Title      *string     `json:"title,omitempty"`
	Artist     *string     `json:"artist,omitempty"`
	Album      *string     `json:"album,omitempty"`
	Year       *int        `json:"year,omitempty"`
	Genre      *string     `json:"genre,omitempty"`
	Language   *string     `json:"language,omitempty"`
	DurationMs *int64      `json:"durationMs,omitempty"`
	Status     *SongStatus `json:"status,omitempty"`
	Paths      *SongPaths  `json:"paths,omitempty"`
	ITunes     *ITunesIDs  `json:"iTunesIds,omitempty"`
	Favorite   *bool       `json:"favorite,omitempty"`
}

// CreateSongInput is the payload accepted by Coordinator.CreateSong.
type CreateSongInput struct {
	Title     string     `json:"title" binding:"required"`
	Artist    string     `json:"artist" binding:"required"`
	Album     string     `json:"album,omitempty"`
	Source    SongSource `json:"source" binding:"required,oneof=upload youtube"`
	SourceURL string     `json:"sourceUrl,omitempty"`
	VideoID   string     `json:"videoId,omitempty"`
}
