package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// songRow is the sqlx scan target for the songs table; YouTubeThumbnails is
// stored as JSON since it is an ordered, variable-length list of structs,
// not a plain scalar column.
type songRow struct {
	ID                  string `db:"id"`
	Title               string `db:"title"`
	Artist              string `db:"artist"`
	ArtistNormalized    string `db:"artist_normalized"`
	Album               string `db:"album"`
	Year                int    `db:"year"`
	Genre               string `db:"genre"`
	Language            string `db:"language"`
	DurationMs          int64  `db:"duration_ms"`
	Source              string `db:"source"`
	SourceURL           string `db:"source_url"`
	VideoID             string `db:"video_id"`
	Status              string `db:"status"`
	PathOriginal        string `db:"path_original"`
	PathVocals          string `db:"path_vocals"`
	PathInstrumental    string `db:"path_instrumental"`
	PathCover           string `db:"path_cover"`
	PathThumbnail       string `db:"path_thumbnail"`
	ITunesTrackID       int64  `db:"itunes_track_id"`
	ITunesArtistID      int64  `db:"itunes_artist_id"`
	ITunesCollectionID  int64  `db:"itunes_collection_id"`
	ThumbnailsJSON      []byte `db:"thumbnails_json"`
	DateAdded           sql.NullTime `db:"date_added"`
	Favorite            bool   `db:"favorite"`
}

func (r songRow) toEntity() entities.Song {
	var thumbs []entities.Thumbnail
	if len(r.ThumbnailsJSON) > 0 {
		_ = json.Unmarshal(r.ThumbnailsJSON, &thumbs)
	}
	return entities.Song{
		ID:       r.ID,
		Title:    r.Title,
		Artist:   r.Artist,
		Album:    r.Album,
		Year:     r.Year,
		Genre:    r.Genre,
		Language: r.Language,
		DurationMs: r.DurationMs,
		Source:    entities.SongSource(r.Source),
		SourceURL: r.SourceURL,
		VideoID:   r.VideoID,
		Status:    entities.SongStatus(r.Status),
		Paths: entities.SongPaths{
			Original:     r.PathOriginal,
			Vocals:       r.PathVocals,
			Instrumental: r.PathInstrumental,
			Cover:        r.PathCover,
			Thumbnail:    r.PathThumbnail,
		},
		ITunes: entities.ITunesIDs{
			TrackID:      r.ITunesTrackID,
			ArtistID:     r.ITunesArtistID,
			CollectionID: r.ITunesCollectionID,
		},
		YouTubeThumbnails: thumbs,
		DateAdded:         r.DateAdded.Time,
		Favorite:          r.Favorite,
	}
}

// SongRepository implements the Song/Artist slice of repositories.Store.
type SongRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSongRepository(db *sqlx.DB, logger *zap.Logger) *SongRepository {
	return &SongRepository{db: db, logger: logger}
}

func (r *SongRepository) CreateSong(ctx context.Context, song *entities.Song) (string, error) {
	if song.Source == entities.SourceYouTube && song.VideoID != "" {
		existing, err := r.GetSongByVideoID(ctx, song.VideoID)
		if err != nil {
			if _, ok := apperrors.As(err); !ok {
				return "", err
			}
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	thumbs, err := json.Marshal(song.YouTubeThumbnails)
	if err != nil {
		return "", apperrors.Internalf(err, "marshal thumbnails")
	}

	const q = `
		INSERT INTO songs (
			id, title, artist, artist_normalized, album, year, genre, language, duration_ms,
			source, source_url, video_id, status,
			path_original, path_vocals, path_instrumental, path_cover, path_thumbnail,
			itunes_track_id, itunes_artist_id, itunes_collection_id, thumbnails_json, favorite
		) VALUES (
			:id, :title, :artist, :artist_normalized, :album, :year, :genre, :language, :duration_ms,
			:source, :source_url, :video_id, :status,
			:path_original, :path_vocals, :path_instrumental, :path_cover, :path_thumbnail,
			:itunes_track_id, :itunes_artist_id, :itunes_collection_id, :thumbnails_json, :favorite
		)
	`
	status := song.Status
	if status == "" {
		status = entities.SongPending
	}
	args := map[string]any{
		"id":                    song.ID,
		"title":                 song.Title,
		"artist":                song.Artist,
		"artist_normalized":     entities.NormalizeArtistName(song.Artist),
		"album":                 song.Album,
		"year":                  song.Year,
		"genre":                 song.Genre,
		"language":              song.Language,
		"duration_ms":           song.DurationMs,
		"source":                string(song.Source),
		"source_url":            song.SourceURL,
		"video_id":              song.VideoID,
		"status":                string(status),
		"path_original":         song.Paths.Original,
		"path_vocals":           song.Paths.Vocals,
		"path_instrumental":     song.Paths.Instrumental,
		"path_cover":            song.Paths.Cover,
		"path_thumbnail":        song.Paths.Thumbnail,
		"itunes_track_id":       song.ITunes.TrackID,
		"itunes_artist_id":      song.ITunes.ArtistID,
		"itunes_collection_id":  song.ITunes.CollectionID,
		"thumbnails_json":       thumbs,
		"favorite":              song.Favorite,
	}

	if _, err := r.db.NamedExecContext(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return "", apperrors.Conflictf("SONG_ALREADY_EXISTS", "a song with videoId %q already exists", song.VideoID)
		}
		r.logger.Error("create song failed", zap.Error(err))
		return "", apperrors.PersistenceErr(err, "create song")
	}

	return song.ID, nil
}

func (r *SongRepository) GetSong(ctx context.Context, id string) (*entities.Song, error) {
	var row songRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM songs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("song", "song %q not found", id)
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "get song")
	}
	song := row.toEntity()
	return &song, nil
}

func (r *SongRepository) GetSongByVideoID(ctx context.Context, videoID string) (*entities.Song, error) {
	var row songRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM songs WHERE source = 'youtube' AND video_id = $1`, videoID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("song", "song with videoId %q not found", videoID)
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "get song by video id")
	}
	song := row.toEntity()
	return &song, nil
}

func (r *SongRepository) UpdateSong(ctx context.Context, id string, patch entities.SongPatch) (*entities.Song, error) {
	current, err := r.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		current.Title = *patch.Title
	}
	if patch.Artist != nil {
		current.Artist = *patch.Artist
	}
	if patch.Album != nil {
		current.Album = *patch.Album
	}
	if patch.Year != nil {
		current.Year = *patch.Year
	}
	if patch.Genre != nil {
		current.Genre = *patch.Genre
	}
	if patch.Language != nil {
		current.Language = *patch.Language
	}
	if patch.DurationMs != nil {
		current.DurationMs = *patch.DurationMs
	}
	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.Paths != nil {
		current.Paths = *patch.Paths
	}
	if patch.ITunes != nil {
		current.ITunes = *patch.ITunes
	}
	if patch.Favorite != nil {
		current.Favorite = *patch.Favorite
	}

	if current.Status == entities.SongCompleted &&
		(current.Paths.Instrumental == "" || current.Paths.Vocals == "") {
		return nil, apperrors.Validationf("INVALID_SONG_STATE", "status=completed requires paths.instrumental and paths.vocals")
	}

	const q = `
		UPDATE songs SET
			title = :title, artist = :artist, artist_normalized = :artist_normalized,
			album = :album, year = :year, genre = :genre, language = :language,
			duration_ms = :duration_ms, status = :status,
			path_original = :path_original, path_vocals = :path_vocals,
			path_instrumental = :path_instrumental, path_cover = :path_cover,
			path_thumbnail = :path_thumbnail,
			itunes_track_id = :itunes_track_id, itunes_artist_id = :itunes_artist_id,
			itunes_collection_id = :itunes_collection_id, favorite = :favorite
		WHERE id = :id
	`
	args := map[string]any{
		"id":                   current.ID,
		"title":                current.Title,
		"artist":               current.Artist,
		"artist_normalized":    entities.NormalizeArtistName(current.Artist),
		"album":                current.Album,
		"year":                 current.Year,
		"genre":                current.Genre,
		"language":             current.Language,
		"duration_ms":          current.DurationMs,
		"status":               string(current.Status),
		"path_original":        current.Paths.Original,
		"path_vocals":          current.Paths.Vocals,
		"path_instrumental":    current.Paths.Instrumental,
		"path_cover":           current.Paths.Cover,
		"path_thumbnail":       current.Paths.Thumbnail,
		"itunes_track_id":      current.ITunes.TrackID,
		"itunes_artist_id":     current.ITunes.ArtistID,
		"itunes_collection_id": current.ITunes.CollectionID,
		"favorite":             current.Favorite,
	}
	if _, err := r.db.NamedExecContext(ctx, q, args); err != nil {
		return nil, apperrors.PersistenceErr(err, "update song")
	}
	return current, nil
}

func (r *SongRepository) DeleteSong(ctx context.Context, id string) error {
	var activeJobs int
	err := r.db.GetContext(ctx, &activeJobs,
		`SELECT count(*) FROM jobs WHERE song_id = $1 AND status NOT IN ('completed','failed','cancelled')`, id)
	if err != nil {
		return apperrors.PersistenceErr(err, "check active jobs before delete")
	}
	if activeJobs > 0 {
		return apperrors.Conflictf("SONG_IN_USE", "song %q has %d non-terminal jobs", id, activeJobs)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return apperrors.PersistenceErr(err, "delete song")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.NotFoundf("song", "song %q not found", id)
	}
	return nil
}

// SearchSongs implements the token-based fuzzy matching from spec.md §4.1
// over a bounded candidate set pulled from Postgres, since the required
// edit-distance-<=2 typo tolerance is evaluated in Go (see fuzzy.go).
func (r *SongRepository) SearchSongs(ctx context.Context, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	var rows []songRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM songs`); err != nil {
		return entities.Page[entities.Song]{}, apperrors.PersistenceErr(err, "search songs")
	}

	queryTokens := tokenize(opts.Query)
	var matches []scored
	for _, row := range rows {
		song := row.toEntity()
		if len(queryTokens) == 0 {
			matches = append(matches, scored{song, 0})
			continue
		}
		if fieldMatchesQuery(song.Title, queryTokens) ||
			fieldMatchesQuery(song.Artist, queryTokens) ||
			fieldMatchesQuery(song.Album, queryTokens) {
			matches = append(matches, scored{song, relevanceScore(song.Title, song.Artist, song.Album, queryTokens)})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].song.DateAdded.After(matches[j].song.DateAdded)
	})

	total := len(matches)
	page := paginateScored(matches, opts.Offset, opts.Limit)
	return entities.Page[entities.Song]{Items: page, Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

// scored pairs a Song with its relevance score for SearchSongs's ranking
// pass.
type scored struct {
	song  entities.Song
	score int
}

func paginateScored(matches []scored, offset, limit int) []entities.Song {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return []entities.Song{}
	}
	end := len(matches)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]entities.Song, 0, end-offset)
	for _, m := range matches[offset:end] {
		out = append(out, m.song)
	}
	return out
}

func (r *SongRepository) ListSongsByArtist(ctx context.Context, artistName string, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	normalized := entities.NormalizeArtistName(artistName)
	var rows []songRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM songs WHERE artist_normalized = $1 ORDER BY date_added DESC`, normalized)
	if err != nil {
		return entities.Page[entities.Song]{}, apperrors.PersistenceErr(err, "list songs by artist")
	}

	songs := make([]entities.Song, 0, len(rows))
	for _, row := range rows {
		songs = append(songs, row.toEntity())
	}
	if opts.Direction == entities.Ascending {
		reverse(songs)
	}

	total := len(songs)
	offset, limit := opts.Offset, opts.Limit
	if offset < 0 {
		offset = 0
	}
	if offset > len(songs) {
		offset = len(songs)
	}
	end := len(songs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entities.Page[entities.Song]{Items: songs[offset:end], Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

func reverse(songs []entities.Song) {
	for i, j := 0, len(songs)-1; i < j; i, j = i+1, j-1 {
		songs[i], songs[j] = songs[j], songs[i]
	}
}

// ListArtists groups songs by normalized artist, sorting alphabetically with
// a leading "The " ignored and purely numeric/non-alphabetic names grouped
// under "#" (spec.md §4.1, example in §8 scenario 6).
func (r *SongRepository) ListArtists(ctx context.Context, opts entities.ListArtistsOptions) (entities.Page[entities.Artist], error) {
	type agg struct {
		Artist string `db:"artist"`
		Count  int    `db:"song_count"`
	}
	var aggs []agg
	err := r.db.SelectContext(ctx, &aggs,
		`SELECT min(artist) AS artist, count(*) AS song_count FROM songs GROUP BY artist_normalized`)
	if err != nil {
		return entities.Page[entities.Artist]{}, apperrors.PersistenceErr(err, "list artists")
	}

	artists := make([]entities.Artist, 0, len(aggs))
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	for _, a := range aggs {
		if search != "" && !strings.Contains(strings.ToLower(a.Artist), search) {
			continue
		}
		artists = append(artists, entities.Artist{
			Name:        a.Artist,
			FirstLetter: entities.ArtistGroupLetter(a.Artist),
			SongCount:   a.Count,
		})
	}

	sort.Slice(artists, func(i, j int) bool {
		return entities.ArtistSortKey(artists[i].Name) < entities.ArtistSortKey(artists[j].Name)
	})

	total := len(artists)
	offset, limit := opts.Offset, opts.Limit
	if offset < 0 {
		offset = 0
	}
	if offset > len(artists) {
		offset = len(artists)
	}
	end := len(artists)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entities.Page[entities.Artist]{Items: artists[offset:end], Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

func (r *SongRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return apperrors.PersistenceErr(err, "store unavailable")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unique")
}
