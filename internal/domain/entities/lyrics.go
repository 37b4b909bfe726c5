package entities

// Lyrics is the one-to-one lyrics record for a Song. See spec.md §3.
type Lyrics struct {
	SongID        string `json:"songId" db:"song_id"`
	PlainText     string `json:"plainText" db:"plain_text"`
	SyncedText    string `json:"syncedText,omitempty" db:"synced_text"`
	LanguageCode  string `json:"languageCode,omitempty" db:"language_code"`
	Source        string `json:"source,omitempty" db:"source"`
	DurationHintMs int64 `json:"durationHintMs,omitempty" db:"duration_hint_ms"`
}

// LyricsLine is one (timestamp, text) pair parsed from an LRC-format
// syncedText string.
type LyricsLine struct {
	TimestampMs int64  `json:"timestampMs"`
	Line        string `json:"line"`
}
