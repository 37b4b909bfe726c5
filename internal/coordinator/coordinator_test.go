package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/eventbus"
)

// mockStore is a minimal in-memory Store for coordinator tests.
type mockStore struct {
	songs       map[string]*entities.Song
	queue       map[int64]*entities.QueueEntry
	nextEntryID int64
}

func newMockStore() *mockStore {
	return &mockStore{songs: map[string]*entities.Song{}, queue: map[int64]*entities.QueueEntry{}}
}

func (m *mockStore) CreateSong(ctx context.Context, song *entities.Song) (string, error) {
	song.ID = "song-" + song.Title
	m.songs[song.ID] = song
	return song.ID, nil
}

func (m *mockStore) GetSong(ctx context.Context, id string) (*entities.Song, error) {
	if s, ok := m.songs[id]; ok {
		return s, nil
	}
	return nil, apperrors.NotFoundf("song", "song %q not found", id)
}

func (m *mockStore) GetSongByVideoID(ctx context.Context, videoID string) (*entities.Song, error) {
	for _, s := range m.songs {
		if s.VideoID == videoID {
			return s, nil
		}
	}
	return nil, apperrors.NotFoundf("song", "no song for video %q", videoID)
}

func (m *mockStore) UpdateSong(ctx context.Context, id string, patch entities.SongPatch) (*entities.Song, error) {
	s, err := m.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *mockStore) DeleteSong(ctx context.Context, id string) error {
	delete(m.songs, id)
	return nil
}

func (m *mockStore) SearchSongs(ctx context.Context, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	return entities.Page[entities.Song]{}, nil
}

func (m *mockStore) ListArtists(ctx context.Context, opts entities.ListArtistsOptions) (entities.Page[entities.Artist], error) {
	return entities.Page[entities.Artist]{}, nil
}

func (m *mockStore) ListSongsByArtist(ctx context.Context, artistName string, opts entities.ListSongsOptions) (entities.Page[entities.Song], error) {
	return entities.Page[entities.Song]{}, nil
}

func (m *mockStore) GetLyrics(ctx context.Context, songID string) (*entities.Lyrics, error) {
	return nil, apperrors.NotFoundf("lyrics", "no lyrics for %q", songID)
}

func (m *mockStore) SetLyrics(ctx context.Context, lyrics *entities.Lyrics) error { return nil }

func (m *mockStore) ListQueue(ctx context.Context) ([]entities.QueueEntry, error) {
	out := make([]entities.QueueEntry, 0, len(m.queue))
	for _, e := range m.queue {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockStore) InsertQueueEntry(ctx context.Context, entry *entities.QueueEntry) (*entities.QueueEntry, error) {
	m.nextEntryID++
	entry.EntryID = m.nextEntryID
	entry.Position = len(m.queue) + 1
	m.queue[entry.EntryID] = entry
	return entry, nil
}

func (m *mockStore) RemoveQueueEntry(ctx context.Context, entryID int64) error {
	if _, ok := m.queue[entryID]; !ok {
		return apperrors.NotFoundf("queueEntry", "entry %d not found", entryID)
	}
	delete(m.queue, entryID)
	return nil
}

func (m *mockStore) ReorderQueue(ctx context.Context, entryIDsInOrder []int64) ([]entities.QueueEntry, error) {
	for i, id := range entryIDsInOrder {
		e, ok := m.queue[id]
		if !ok {
			return nil, apperrors.NotFoundf("queueEntry", "entry %d not found", id)
		}
		e.Position = i + 1
	}
	return m.ListQueue(ctx)
}

func (m *mockStore) SetPlayingQueueEntry(ctx context.Context, entryID int64) error {
	for _, e := range m.queue {
		if e.Status == entities.QueuePlaying {
			e.Status = entities.QueuePlayed
		}
	}
	e, ok := m.queue[entryID]
	if !ok {
		return apperrors.NotFoundf("queueEntry", "entry %d not found", entryID)
	}
	e.Status = entities.QueuePlaying
	return nil
}

func (m *mockStore) GetQueueEntry(ctx context.Context, entryID int64) (*entities.QueueEntry, error) {
	e, ok := m.queue[entryID]
	if !ok {
		return nil, apperrors.NotFoundf("queueEntry", "entry %d not found", entryID)
	}
	return e, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

// mockJobStore is a minimal in-memory JobStore for coordinator tests.
type mockJobStore struct {
	jobs map[string]*entities.Job
	seq  int
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: map[string]*entities.Job{}}
}

func (m *mockJobStore) SaveJob(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	m.seq++
	if job.ID == "" {
		job.ID = "job-" + job.SongID
	}
	cp := *job
	m.jobs[cp.ID] = &cp
	return &cp, nil
}

func (m *mockJobStore) GetJob(ctx context.Context, id string) (*entities.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("job", "job %q not found", id)
	}
	return j, nil
}

func (m *mockJobStore) ListJobs(ctx context.Context) ([]entities.Job, error) {
	out := make([]entities.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (m *mockJobStore) ReserveNextRunnable(ctx context.Context) (*entities.Job, error) {
	return nil, nil
}

func (m *mockJobStore) UpdateJob(ctx context.Context, id, taskRef string, patch entities.JobPatch) (*entities.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("job", "job %q not found", id)
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	return j, nil
}

func (m *mockJobStore) MarkCancelling(ctx context.Context, id string) error {
	j, ok := m.jobs[id]
	if !ok {
		return apperrors.NotFoundf("job", "job %q not found", id)
	}
	if j.Status.IsTerminal() {
		return apperrors.Conflictf("JOB_NOT_CANCELLABLE", "job %q is terminal", id)
	}
	j.Status = entities.JobCancelling
	return nil
}

func (m *mockJobStore) RequeueStaleReservations(ctx context.Context, olderThanSeconds int) (int, error) {
	return 0, nil
}

func (m *mockJobStore) ReapTerminalJobs(ctx context.Context, olderThanSeconds int) (int, error) {
	return 0, nil
}

func newTestCoordinator() (*Coordinator, *mockStore, *mockJobStore) {
	store := newMockStore()
	jobStore := newMockJobStore()
	bus := eventbus.New(eventbus.DefaultBufferSize)
	logger := zap.NewNop()
	return New(store, jobStore, bus, nil, logger), store, jobStore
}

func TestEnqueueYouTubeJobRequiresExistingSong(t *testing.T) {
	c, _, _ := newTestCoordinator()

	_, err := c.EnqueueYouTubeJob(context.Background(), "missing-song", "vid123", "Title", "Artist")
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.NotFound, appErr.Kind)
}

func TestEnqueueYouTubeJobPublishesJobCreated(t *testing.T) {
	c, store, _ := newTestCoordinator()
	songID, err := c.CreateSong(context.Background(), entities.CreateSongInput{
		Title: "Song", Artist: "Artist", Source: entities.SourceYouTube, VideoID: "vid1",
	})
	require.NoError(t, err)
	require.Contains(t, store.songs, songID)

	sub := eventBusSubscribe(t, c)
	defer sub.Close()

	jobID, err := c.EnqueueYouTubeJob(context.Background(), songID, "vid1", "Song", "Artist")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	select {
	case ev := <-sub.Recv():
		assert.Equal(t, eventbus.TopicJobCreated, ev.Topic)
	default:
		t.Fatal("expected job.created event on the bus")
	}
}

func TestCancelJobRejectsTerminalJob(t *testing.T) {
	c, _, jobStore := newTestCoordinator()
	job := &entities.Job{ID: "j1", SongID: "s1", Kind: entities.JobYouTube, Status: entities.JobCompleted}
	jobStore.jobs[job.ID] = job

	err := c.CancelJob(context.Background(), job.ID)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.Conflict, appErr.Kind)
}

func TestReorderQueueRejectsNonPermutation(t *testing.T) {
	c, store, _ := newTestCoordinator()
	ctx := context.Background()
	songID, _ := c.CreateSong(ctx, entities.CreateSongInput{Title: "A", Artist: "B", Source: entities.SourceUpload})
	_ = store

	e1, err := c.AddToQueue(ctx, songID, "Alice")
	require.NoError(t, err)
	e2, err := c.AddToQueue(ctx, songID, "Bob")
	require.NoError(t, err)

	_, err = c.ReorderQueue(ctx, []int64{e1.EntryID})
	require.Error(t, err)

	_, err = c.ReorderQueue(ctx, []int64{e1.EntryID, e1.EntryID})
	require.Error(t, err)

	reordered, err := c.ReorderQueue(ctx, []int64{e2.EntryID, e1.EntryID})
	require.NoError(t, err)
	assert.Len(t, reordered, 2)
}

func TestUpdatePerformanceControlValidatesVolumeRange(t *testing.T) {
	c, _, _ := newTestCoordinator()
	tooLoud := 1.5

	_, err := c.UpdatePerformanceControl(context.Background(), entities.PerformanceControlPatch{VocalVolume: &tooLoud})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.Validation, appErr.Kind)
}

func TestUpdatePerformanceControlAppliesPatch(t *testing.T) {
	c, _, _ := newTestCoordinator()
	half := 0.5
	playing := true

	state, err := c.UpdatePerformanceControl(context.Background(), entities.PerformanceControlPatch{
		VocalVolume: &half,
		Play:        &playing,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, state.VocalVolume)
	assert.True(t, state.IsPlaying)

	assert.Equal(t, state, c.CurrentPerformanceState(context.Background()))
}

func TestAdvanceQueuePromotesLowestPosition(t *testing.T) {
	c, _, _ := newTestCoordinator()
	ctx := context.Background()
	songID, _ := c.CreateSong(ctx, entities.CreateSongInput{Title: "A", Artist: "B", Source: entities.SourceUpload})

	first, err := c.AddToQueue(ctx, songID, "Alice")
	require.NoError(t, err)
	_, err = c.AddToQueue(ctx, songID, "Bob")
	require.NoError(t, err)

	promoted, err := c.AdvanceQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.EntryID, promoted.EntryID)
	assert.Equal(t, entities.QueuePlaying, promoted.Status)
}

// eventBusSubscribe is a small test helper matching the pattern
// used across the bus-backed test files: subscribe before the action
// under test so the publication cannot race the assertion.
func eventBusSubscribe(t *testing.T, c *Coordinator) *eventbus.Subscription {
	t.Helper()
	return c.bus.Subscribe(eventbus.PatternJobs)
}
