package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// LyricsRepository implements the Lyrics slice of repositories.Store.
type LyricsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLyricsRepository(db *sqlx.DB, logger *zap.Logger) *LyricsRepository {
	return &LyricsRepository{db: db, logger: logger}
}

func (r *LyricsRepository) GetLyrics(ctx context.Context, songID string) (*entities.Lyrics, error) {
	var lyrics entities.Lyrics
	err := r.db.GetContext(ctx, &lyrics, `SELECT * FROM lyrics WHERE song_id = $1`, songID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("lyrics", "no lyrics for song %q", songID)
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "get lyrics")
	}
	return &lyrics, nil
}

func (r *LyricsRepository) SetLyrics(ctx context.Context, lyrics *entities.Lyrics) error {
	const q = `
		INSERT INTO lyrics (song_id, plain_text, synced_text, language_code, source, duration_hint_ms)
		VALUES (:song_id, :plain_text, :synced_text, :language_code, :source, :duration_hint_ms)
		ON CONFLICT (song_id) DO UPDATE SET
			plain_text = EXCLUDED.plain_text,
			synced_text = EXCLUDED.synced_text,
			language_code = EXCLUDED.language_code,
			source = EXCLUDED.source,
			duration_hint_ms = EXCLUDED.duration_hint_ms
	`
	if _, err := r.db.NamedExecContext(ctx, q, lyrics); err != nil {
		return apperrors.PersistenceErr(err, "set lyrics")
	}
	return nil
}
