package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// QueueRepository implements the karaoke-queue slice of repositories.Store.
type QueueRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewQueueRepository(db *sqlx.DB, logger *zap.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

func (r *QueueRepository) ListQueue(ctx context.Context) ([]entities.QueueEntry, error) {
	var entries []entities.QueueEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM queue_entries WHERE status IN ('queued','playing') ORDER BY position ASC`)
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "list queue")
	}
	return entries, nil
}

func (r *QueueRepository) GetQueueEntry(ctx context.Context, entryID int64) (*entities.QueueEntry, error) {
	var entry entities.QueueEntry
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM queue_entries WHERE entry_id = $1`, entryID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("queueEntry", "queue entry %d not found", entryID)
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "get queue entry")
	}
	return &entry, nil
}

func (r *QueueRepository) InsertQueueEntry(ctx context.Context, entry *entities.QueueEntry) (*entities.QueueEntry, error) {
	var maxPos sql.NullInt64
	if err := r.db.GetContext(ctx, &maxPos,
		`SELECT max(position) FROM queue_entries WHERE status IN ('queued','playing')`); err != nil {
		return nil, apperrors.PersistenceErr(err, "compute next queue position")
	}

	entry.Position = int(maxPos.Int64) + 1
	if entry.Status == "" {
		entry.Status = entities.QueueQueued
	}

	const q = `
		INSERT INTO queue_entries (song_id, singer_name, position, status)
		VALUES (:song_id, :singer_name, :position, :status)
		RETURNING entry_id, added_at
	`
	rows, err := r.db.NamedQueryContext(ctx, q, entry)
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "insert queue entry")
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&entry.EntryID, &entry.AddedAt); err != nil {
			return nil, apperrors.PersistenceErr(err, "scan inserted queue entry")
		}
	}
	return entry, nil
}

func (r *QueueRepository) RemoveQueueEntry(ctx context.Context, entryID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return apperrors.PersistenceErr(err, "remove queue entry")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.NotFoundf("queueEntry", "queue entry %d not found", entryID)
	}
	return nil
}

// ReorderQueue reassigns position values to match entryIDsInOrder exactly,
// within a single transaction so concurrent readers never observe a
// partially-renumbered queue (spec.md §5).
func (r *QueueRepository) ReorderQueue(ctx context.Context, entryIDsInOrder []int64) ([]entities.QueueEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "begin reorder transaction")
	}
	defer tx.Rollback()

	for i, id := range entryIDsInOrder {
		res, err := tx.ExecContext(ctx,
			`UPDATE queue_entries SET position = $1 WHERE entry_id = $2 AND status IN ('queued','playing')`,
			i+1, id)
		if err != nil {
			return nil, apperrors.PersistenceErr(err, "reorder queue entry %d", id)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil, apperrors.NotFoundf("queueEntry", "queue entry %d not found or not reorderable", id)
		}
	}

	var entries []entities.QueueEntry
	if err := tx.SelectContext(ctx, &entries,
		`SELECT * FROM queue_entries WHERE status IN ('queued','playing') ORDER BY position ASC`); err != nil {
		return nil, apperrors.PersistenceErr(err, "read reordered queue")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.PersistenceErr(err, "commit reorder transaction")
	}
	return entries, nil
}

func (r *QueueRepository) SetPlayingQueueEntry(ctx context.Context, entryID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.PersistenceErr(err, "begin set-playing transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = 'played' WHERE status = 'playing'`); err != nil {
		return apperrors.PersistenceErr(err, "retire previous playing entry")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET status = 'playing' WHERE entry_id = $1 AND status = 'queued'`, entryID)
	if err != nil {
		return apperrors.PersistenceErr(err, "set playing queue entry")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.NotFoundf("queueEntry", "queue entry %d not found or not queued", entryID)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.PersistenceErr(err, "commit set-playing transaction")
	}
	return nil
}
