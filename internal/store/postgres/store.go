package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Store composes the per-table repositories into the single
// repositories.Store interface Coordinator depends on.
type Store struct {
	*SongRepository
	*LyricsRepository
	*QueueRepository
}

// NewStore builds a Store backed by a shared connection pool.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{
		SongRepository:   NewSongRepository(db, logger),
		LyricsRepository: NewLyricsRepository(db, logger),
		QueueRepository:  NewQueueRepository(db, logger),
	}
}

// Ping is promoted from SongRepository explicitly to document that
// liveness is checked through the song table's connection, not a
// separate health query.
func (s *Store) Ping(ctx context.Context) error {
	return s.SongRepository.Ping(ctx)
}
