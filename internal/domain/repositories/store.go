// Package repositories declares the persistence-facing interfaces
// Coordinator and Dispatcher depend on, kept separate from any concrete
// backend (internal/store/postgres is the only implementation today).
package repositories

import (
	"context"

	"github.com/openkaraoke/studio/internal/domain/entities"
)

// Store is the durable persistence surface from spec.md §4.1.
type Store interface {
	CreateSong(ctx context.Context, song *entities.Song) (string, error)
	GetSong(ctx context.Context, id string) (*entities.Song, error)
	GetSongByVideoID(ctx context.Context, videoID string) (*entities.Song, error)
	UpdateSong(ctx context.Context, id string, patch entities.SongPatch) (*entities.Song, error)
	DeleteSong(ctx context.Context, id string) error
	SearchSongs(ctx context.Context, opts entities.ListSongsOptions) (entities.Page[entities.Song], error)
	ListArtists(ctx context.Context, opts entities.ListArtistsOptions) (entities.Page[entities.Artist], error)
	ListSongsByArtist(ctx context.Context, artistName string, opts entities.ListSongsOptions) (entities.Page[entities.Song], error)

	GetLyrics(ctx context.Context, songID string) (*entities.Lyrics, error)
	SetLyrics(ctx context.Context, lyrics *entities.Lyrics) error

	ListQueue(ctx context.Context) ([]entities.QueueEntry, error)
	InsertQueueEntry(ctx context.Context, entry *entities.QueueEntry) (*entities.QueueEntry, error)
	RemoveQueueEntry(ctx context.Context, entryID int64) error
	ReorderQueue(ctx context.Context, entryIDsInOrder []int64) ([]entities.QueueEntry, error)
	SetPlayingQueueEntry(ctx context.Context, entryID int64) error
	GetQueueEntry(ctx context.Context, entryID int64) (*entities.QueueEntry, error)

	Ping(ctx context.Context) error
}
