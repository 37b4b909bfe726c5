// Package coordinator implements the public service façade from
// spec.md §4.7: the HTTP layer and PushHub go through it for song, job,
// queue and performance-state operations, and it is the only writer of
// the in-memory PerformanceState. It enforces create-before-enqueue
// ordering and publishes each of its own events strictly after the write
// it reports (spec.md §5).
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/cache"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/domain/repositories"
	"github.com/openkaraoke/studio/internal/eventbus"
)

// Coordinator is constructed once at startup and passed explicitly to the
// HTTP layer and PushHub. The Dispatcher and Pipeline do not go through
// it: they are handed JobStore, Store and EventBus directly.
type Coordinator struct {
	store    repositories.Store
	jobStore repositories.JobStore
	bus      *eventbus.Bus
	cache    *cache.SearchCache // nil when Redis is not configured
	logger   *zap.Logger

	perfMu    sync.Mutex
	perfState entities.PerformanceState
}

func New(store repositories.Store, jobStore repositories.JobStore, bus *eventbus.Bus, searchCache *cache.SearchCache, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		jobStore:  jobStore,
		bus:       bus,
		cache:     searchCache,
		logger:    logger,
		perfState: entities.DefaultPerformanceState(),
	}
}

// SearchSongs serves from cache when configured, falling through to Store
// on a miss or when caching is disabled.
func (c *Coordinator) SearchSongs(ctx context.Context, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	if c.cache != nil {
		if page, ok := c.cache.GetSongs(ctx, opts); ok {
			return page, nil
		}
	}
	page, err := c.store.SearchSongs(ctx, opts)
	if err != nil {
		return page, err
	}
	if c.cache != nil {
		c.cache.SetSongs(ctx, opts, page)
	}
	return page, nil
}

func (c *Coordinator) ListSongsByArtist(ctx context.Context, artistName string, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	return c.store.ListSongsByArtist(ctx, artistName, opts)
}

func (c *Coordinator) ListArtists(ctx context.Context, opts entities.ListArtistsOptions) (entities.Page[entities.Artist], error) {
	if c.cache != nil {
		if page, ok := c.cache.GetArtists(ctx, opts); ok {
			return page, nil
		}
	}
	page, err := c.store.ListArtists(ctx, opts)
	if err != nil {
		return page, err
	}
	if c.cache != nil {
		c.cache.SetArtists(ctx, opts, page)
	}
	return page, nil
}

func (c *Coordinator) GetSong(ctx context.Context, id string) (*entities.Song, error) {
	return c.store.GetSong(ctx, id)
}

func (c *Coordinator) DeleteSong(ctx context.Context, id string) error {
	if err := c.store.DeleteSong(ctx, id); err != nil {
		return err
	}
	c.invalidateSearch(ctx)
	return nil
}

func (c *Coordinator) UpdateSong(ctx context.Context, id string, patch entities.SongPatch) (*entities.Song, error) {
	song, err := c.store.UpdateSong(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.invalidateSearch(ctx)
	return song, nil
}

func (c *Coordinator) GetLyrics(ctx context.Context, songID string) (*entities.Lyrics, error) {
	return c.store.GetLyrics(ctx, songID)
}

func (c *Coordinator) SetLyrics(ctx context.Context, lyrics *entities.Lyrics) error {
	return c.store.SetLyrics(ctx, lyrics)
}

func (c *Coordinator) invalidateSearch(ctx context.Context) {
	if c.cache != nil {
		c.cache.Invalidate(ctx)
	}
}

// CreateSong writes the Song row and returns its id, deduplicating on
// (source=youtube, videoId) per spec.md §4.7.
func (c *Coordinator) CreateSong(ctx context.Context, input entities.CreateSongInput) (string, error) {
	if input.Source == entities.SourceYouTube && input.VideoID == "" {
		return "", apperrors.Validationf("MISSING_PARAMETERS", "videoId is required when source=youtube")
	}

	song := &entities.Song{
		Title:     input.Title,
		Artist:    input.Artist,
		Album:     input.Album,
		Source:    input.Source,
		SourceURL: input.SourceURL,
		VideoID:   input.VideoID,
		Status:    entities.SongPending,
	}

	id, err := c.store.CreateSong(ctx, song)
	if err != nil {
		return "", err
	}
	c.invalidateSearch(ctx)
	return id, nil
}

// EnqueueYouTubeJob requires the song to already exist (create-before-
// enqueue, spec.md §8) and writes the job with status=pending.
func (c *Coordinator) EnqueueYouTubeJob(ctx context.Context, songID, videoID, title, artist string) (string, error) {
	if songID == "" || videoID == "" {
		return "", apperrors.Validationf("MISSING_PARAMETERS", "songId and videoId are required")
	}
	if _, err := c.store.GetSong(ctx, songID); err != nil {
		return "", err
	}

	job := &entities.Job{
		SongID: songID,
		Kind:   entities.JobYouTube,
		Status: entities.JobPending,
		Notes:  entities.JobNotes{YouTube: &entities.YouTubeNotes{VideoID: videoID}},
	}
	saved, err := c.jobStore.SaveJob(ctx, job)
	if err != nil {
		return "", err
	}

	c.bus.Publish(eventbus.TopicJobCreated, *saved)
	return saved.ID, nil
}

// EnqueueUploadJob is the upload-kind symmetric operation.
func (c *Coordinator) EnqueueUploadJob(ctx context.Context, songID, filePath string) (string, error) {
	if songID == "" || filePath == "" {
		return "", apperrors.Validationf("MISSING_PARAMETERS", "songId and filePath are required")
	}
	if _, err := c.store.GetSong(ctx, songID); err != nil {
		return "", err
	}

	job := &entities.Job{
		SongID: songID,
		Kind:   entities.JobUpload,
		Status: entities.JobPending,
		Notes:  entities.JobNotes{Upload: &entities.UploadNotes{SourcePath: filePath}},
	}
	saved, err := c.jobStore.SaveJob(ctx, job)
	if err != nil {
		return "", err
	}

	c.bus.Publish(eventbus.TopicJobCreated, *saved)
	return saved.ID, nil
}

// CancelJob marks the job cancelling; the Dispatcher observes this
// cooperatively between pipeline steps (spec.md §4.5).
func (c *Coordinator) CancelJob(ctx context.Context, jobID string) error {
	if err := c.jobStore.MarkCancelling(ctx, jobID); err != nil {
		return err
	}
	job, err := c.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	c.bus.Publish(eventbus.TopicJobUpdated, *job)
	return nil
}

// DismissJob removes a terminal job from the visible listing ahead of its
// retention window, used by the dismiss API endpoint.
func (c *Coordinator) DismissJob(ctx context.Context, jobID string) error {
	job, err := c.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return apperrors.Conflictf("JOB_NOT_DISMISSABLE", "job %q is not terminal", jobID)
	}
	_, err = c.jobStore.ReapTerminalJobs(ctx, 0)
	return err
}

func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*entities.Job, error) {
	return c.jobStore.GetJob(ctx, jobID)
}

func (c *Coordinator) ListJobs(ctx context.Context) ([]entities.Job, error) {
	return c.jobStore.ListJobs(ctx)
}

// AddToQueue assigns the next queue position to a new entry.
func (c *Coordinator) AddToQueue(ctx context.Context, songID, singerName string) (*entities.QueueEntry, error) {
	if _, err := c.store.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	entry := &entities.QueueEntry{SongID: songID, SingerName: singerName, Status: entities.QueueQueued}
	saved, err := c.store.InsertQueueEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	c.bus.Publish(eventbus.TopicQueueChanged, c.queueSnapshot(ctx))
	return saved, nil
}

// RemoveEntry removes an entry, then closes the position gap by
// renumbering the remaining queued entries through Store.ReorderQueue.
func (c *Coordinator) RemoveEntry(ctx context.Context, entryID int64) error {
	if err := c.store.RemoveQueueEntry(ctx, entryID); err != nil {
		return err
	}
	queue, err := c.store.ListQueue(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(queue))
	for _, e := range queue {
		if e.Status == entities.QueueQueued {
			ids = append(ids, e.EntryID)
		}
	}
	if len(ids) > 0 {
		if _, err := c.store.ReorderQueue(ctx, ids); err != nil {
			return err
		}
	}
	c.bus.Publish(eventbus.TopicQueueChanged, c.queueSnapshot(ctx))
	return nil
}

// ReorderQueue validates entryOrder is a permutation of the current queued
// entries and rewrites positions atomically, per spec.md §4.7.
func (c *Coordinator) ReorderQueue(ctx context.Context, entryOrder []int64) ([]entities.QueueEntry, error) {
	current, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	currentIDs := make(map[int64]bool, len(current))
	for _, e := range current {
		if e.Status == entities.QueueQueued {
			currentIDs[e.EntryID] = true
		}
	}
	if len(entryOrder) != len(currentIDs) {
		return nil, apperrors.Validationf("INVALID_QUEUE_ORDER", "entryOrder must be a permutation of the queued entries")
	}
	seen := make(map[int64]bool, len(entryOrder))
	for _, id := range entryOrder {
		if !currentIDs[id] || seen[id] {
			return nil, apperrors.Validationf("INVALID_QUEUE_ORDER", "entryOrder must be a permutation of the queued entries")
		}
		seen[id] = true
	}

	reordered, err := c.store.ReorderQueue(ctx, entryOrder)
	if err != nil {
		return nil, err
	}
	c.bus.Publish(eventbus.TopicQueueChanged, reordered)
	return reordered, nil
}

// AdvanceQueue marks the current playing entry played (if any), promotes
// position 1 to playing, and renumbers the rest, per spec.md §4.7.
func (c *Coordinator) AdvanceQueue(ctx context.Context) (*entities.QueueEntry, error) {
	queue, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	var nextQueued *entities.QueueEntry
	for i := range queue {
		if queue[i].Status == entities.QueueQueued && (nextQueued == nil || queue[i].Position < nextQueued.Position) {
			nextQueued = &queue[i]
		}
	}
	if nextQueued == nil {
		return nil, apperrors.NotFoundf("queueEntry", "no queued entries to advance to")
	}

	if err := c.store.SetPlayingQueueEntry(ctx, nextQueued.EntryID); err != nil {
		return nil, err
	}

	remaining, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(remaining))
	for _, e := range remaining {
		if e.Status == entities.QueueQueued {
			ids = append(ids, e.EntryID)
		}
	}
	if len(ids) > 0 {
		if _, err := c.store.ReorderQueue(ctx, ids); err != nil {
			return nil, err
		}
	}

	promoted, err := c.store.GetQueueEntry(ctx, nextQueued.EntryID)
	if err != nil {
		return nil, err
	}
	c.bus.Publish(eventbus.TopicQueueAdvanced, *promoted)
	return promoted, nil
}

func (c *Coordinator) ListQueue(ctx context.Context) ([]entities.QueueEntry, error) {
	return c.store.ListQueue(ctx)
}

func (c *Coordinator) queueSnapshot(ctx context.Context) []entities.QueueEntry {
	queue, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil
	}
	return queue
}

// CurrentPerformanceState returns the in-memory singleton (spec.md §3, §5).
func (c *Coordinator) CurrentPerformanceState(ctx context.Context) entities.PerformanceState {
	c.perfMu.Lock()
	defer c.perfMu.Unlock()
	return c.perfState
}

// UpdatePerformanceControl validates ranges, applies the patch to the
// singleton, and publishes performance.changed with exactly the patch
// fields that changed, per spec.md §4.7.
func (c *Coordinator) UpdatePerformanceControl(ctx context.Context, patch entities.PerformanceControlPatch) (entities.PerformanceState, error) {
	if err := validatePerformancePatch(patch); err != nil {
		return entities.PerformanceState{}, err
	}

	c.perfMu.Lock()
	if patch.VocalVolume != nil {
		c.perfState.VocalVolume = *patch.VocalVolume
	}
	if patch.InstrumentalVolume != nil {
		c.perfState.InstrumentalVolume = *patch.InstrumentalVolume
	}
	if patch.LyricsSize != nil {
		c.perfState.LyricsSize = *patch.LyricsSize
	}
	if patch.LyricsOffsetMs != nil {
		c.perfState.LyricsOffsetMs = *patch.LyricsOffsetMs
	}
	if patch.Play != nil {
		c.perfState.IsPlaying = *patch.Play
	}
	state := c.perfState
	c.perfMu.Unlock()

	c.bus.Publish(eventbus.TopicPerformanceChanged, patch)
	return state, nil
}

func validatePerformancePatch(patch entities.PerformanceControlPatch) error {
	if patch.VocalVolume != nil && (*patch.VocalVolume < 0 || *patch.VocalVolume > 1) {
		return apperrors.Validationf("INVALID_VOLUME", "vocalVolume must be in [0,1]")
	}
	if patch.InstrumentalVolume != nil && (*patch.InstrumentalVolume < 0 || *patch.InstrumentalVolume > 1) {
		return apperrors.Validationf("INVALID_VOLUME", "instrumentalVolume must be in [0,1]")
	}
	if patch.LyricsSize != nil {
		switch *patch.LyricsSize {
		case entities.LyricsSmall, entities.LyricsMedium, entities.LyricsLarge:
		default:
			return apperrors.Validationf("INVALID_LYRICS_SIZE", "unknown lyricsSize %q", *patch.LyricsSize)
		}
	}
	return nil
}
