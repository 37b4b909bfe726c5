package postgres

// schemaStatements defines the tables and indexes required by spec.md §4.1
// ("Range scans must use the indexes defined on (artistNormalized),
// (dateAdded desc), (videoId), and (status)").
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS songs (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		artist_normalized TEXT NOT NULL,
		album TEXT NOT NULL DEFAULT '',
		year INT NOT NULL DEFAULT 0,
		genre TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		video_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		path_original TEXT NOT NULL DEFAULT '',
		path_vocals TEXT NOT NULL DEFAULT '',
		path_instrumental TEXT NOT NULL DEFAULT '',
		path_cover TEXT NOT NULL DEFAULT '',
		path_thumbnail TEXT NOT NULL DEFAULT '',
		itunes_track_id BIGINT NOT NULL DEFAULT 0,
		itunes_artist_id BIGINT NOT NULL DEFAULT 0,
		itunes_collection_id BIGINT NOT NULL DEFAULT 0,
		thumbnails_json JSONB NOT NULL DEFAULT '[]',
		date_added TIMESTAMPTZ NOT NULL DEFAULT now(),
		favorite BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_songs_video_id ON songs (video_id) WHERE source = 'youtube' AND video_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_songs_artist_normalized ON songs (artist_normalized)`,
	`CREATE INDEX IF NOT EXISTS idx_songs_date_added ON songs (date_added DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_songs_status ON songs (status)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		song_id UUID NOT NULL REFERENCES songs(id),
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INT NOT NULL DEFAULT 0,
		status_message TEXT NOT NULL DEFAULT '',
		task_ref TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		error_detail_step TEXT NOT NULL DEFAULT '',
		error_detail_message TEXT NOT NULL DEFAULT '',
		notes_json JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		reserved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_song_id ON jobs (song_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at)`,

	`CREATE TABLE IF NOT EXISTS lyrics (
		song_id UUID PRIMARY KEY REFERENCES songs(id),
		plain_text TEXT NOT NULL DEFAULT '',
		synced_text TEXT NOT NULL DEFAULT '',
		language_code TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		duration_hint_ms BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS queue_entries (
		entry_id BIGSERIAL PRIMARY KEY,
		song_id UUID NOT NULL REFERENCES songs(id),
		singer_name TEXT NOT NULL,
		position INT NOT NULL,
		status TEXT NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_status_position ON queue_entries (status, position)`,
}
