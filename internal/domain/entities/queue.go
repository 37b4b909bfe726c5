package entities

import "time"

// QueueEntryStatus is a karaoke queue entry's position in its lifecycle.
type QueueEntryStatus string

const (
	QueueQueued QueueEntryStatus = "queued"
	QueuePlaying QueueEntryStatus = "playing"
	QueuePlayed QueueEntryStatus = "played"
)

// QueueEntry is one singer's turn in the karaoke queue. See spec.md §3.
type QueueEntry struct {
	EntryID    int64            `json:"entryId" db:"entry_id"`
	SongID     string           `json:"songId" db:"song_id"`
	SingerName string           `json:"singerName" db:"singer_name"`
	Position   int              `json:"position" db:"position"`
	Status     QueueEntryStatus `json:"status" db:"status"`
	AddedAt    time.Time        `json:"addedAt" db:"added_at"`
}
