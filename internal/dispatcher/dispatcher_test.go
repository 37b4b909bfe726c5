package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/eventbus"
)

// fakeJobStore hands out a fixed slice of jobs once, then reports nothing
// runnable, enough to exercise one pass of the worker loop.
type fakeJobStore struct {
	mu       sync.Mutex
	pending  []*entities.Job
	byID     map[string]*entities.Job
	updated  map[string]entities.JobPatch
	requeued int
}

func newFakeJobStore(jobs ...*entities.Job) *fakeJobStore {
	byID := make(map[string]*entities.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	return &fakeJobStore{pending: jobs, byID: byID, updated: map[string]entities.JobPatch{}}
}

func (f *fakeJobStore) SaveJob(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	return job, nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, id string) (*entities.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.byID[id]; ok {
		return j, nil
	}
	return nil, nil
}

func (f *fakeJobStore) ListJobs(ctx context.Context) ([]entities.Job, error) { return nil, nil }

func (f *fakeJobStore) ReserveNextRunnable(ctx context.Context) (*entities.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	job.Status = entities.JobReserved
	return job, nil
}

func (f *fakeJobStore) UpdateJob(ctx context.Context, id, taskRef string, patch entities.JobPatch) (*entities.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[id] = patch
	return nil, nil
}

func (f *fakeJobStore) MarkCancelling(ctx context.Context, id string) error { return nil }

func (f *fakeJobStore) RequeueStaleReservations(ctx context.Context, olderThanSeconds int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued++
	return 0, nil
}

func (f *fakeJobStore) ReapTerminalJobs(ctx context.Context, olderThanSeconds int) (int, error) {
	return 0, nil
}

// fakeRunner completes every job it is handed and records the call.
type fakeRunner struct {
	mu  sync.Mutex
	ran []string
}

func (r *fakeRunner) Run(ctx context.Context, job *entities.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, job.ID)
	job.Status = entities.JobCompleted
	return nil
}

func TestDispatcherRunsReservedJobs(t *testing.T) {
	job := &entities.Job{ID: "job-1", Kind: entities.JobUpload, Status: entities.JobPending}
	jobStore := newFakeJobStore(job)
	runner := &fakeRunner{}
	bus := eventbus.New(eventbus.DefaultBufferSize)
	d := New(jobStore, runner, bus, zap.NewNop(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.ran) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Stop()

	assert.Equal(t, []string{"job-1"}, runner.ran)
}

func TestDispatcherConcurrencyFloorIsOne(t *testing.T) {
	jobStore := newFakeJobStore()
	d := New(jobStore, &fakeRunner{}, eventbus.New(eventbus.DefaultBufferSize), zap.NewNop(), 0)
	assert.Equal(t, 1, d.concurrency)
}

func TestDispatcherStopWaitsForWorkers(t *testing.T) {
	jobStore := newFakeJobStore()
	d := New(jobStore, &fakeRunner{}, eventbus.New(eventbus.DefaultBufferSize), zap.NewNop(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()
	d.Stop()
}
