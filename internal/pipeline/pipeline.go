// Package pipeline implements the UploadPipeline and YouTubePipeline step
// sequences from spec.md §4.6: idempotent, resumable steps a Dispatcher
// worker drives a reserved Job through.
package pipeline

import (
	"context"
	"time"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/domain/repositories"
)

// StepTimeouts carries the per-step deadlines from spec.md §4.5/§6.4.
type StepTimeouts struct {
	Fetch    time.Duration
	Separate time.Duration
	Metadata time.Duration
	Lyrics   time.Duration
}

// DefaultStepTimeouts matches the literal values named in spec.md §4.5.
func DefaultStepTimeouts() StepTimeouts {
	return StepTimeouts{
		Fetch:    10 * time.Minute,
		Separate: 30 * time.Minute,
		Metadata: 15 * time.Second,
		Lyrics:   15 * time.Second,
	}
}

// Pipeline runs a Job to completion, step by step, checking for
// cancellation between steps.
type Pipeline struct {
	store      repositories.Store
	jobStore   repositories.JobStore
	fetcher    collaborators.Fetcher
	separator  collaborators.Separator
	metadata   collaborators.MetadataProvider
	lyrics     collaborators.LyricsProvider
	timeouts   StepTimeouts
	libraryDir string
	device     string

	onProgress func(ctx context.Context, job *entities.Job)
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

func WithTimeouts(t StepTimeouts) Option {
	return func(p *Pipeline) { p.timeouts = t }
}

func WithSeparatorDevice(device string) Option {
	return func(p *Pipeline) { p.device = device }
}

// WithProgressHook registers a callback invoked after every persisted
// progress update, used by cmd/server to publish job.updated events without
// the pipeline depending on eventbus directly.
func WithProgressHook(fn func(ctx context.Context, job *entities.Job)) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

func New(
	store repositories.Store,
	jobStore repositories.JobStore,
	fetcher collaborators.Fetcher,
	separator collaborators.Separator,
	metadata collaborators.MetadataProvider,
	lyrics collaborators.LyricsProvider,
	libraryDir string,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		store:      store,
		jobStore:   jobStore,
		fetcher:    fetcher,
		separator:  separator,
		metadata:   metadata,
		lyrics:     lyrics,
		timeouts:   DefaultStepTimeouts(),
		libraryDir: libraryDir,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives job (already reserved, taskRef set) through the pipeline
// matching its Kind, per spec.md §4.6.
func (p *Pipeline) Run(ctx context.Context, job *entities.Job) error {
	switch job.Kind {
	case entities.JobYouTube:
		return p.runYouTube(ctx, job)
	case entities.JobUpload:
		return p.runUpload(ctx, job)
	default:
		return p.fail(ctx, job, entities.ErrorInternal, "pipeline", "unknown job kind")
	}
}

// isCancelling re-reads the job's status to observe a cooperative
// cancellation request (spec.md §4.5).
func (p *Pipeline) isCancelling(ctx context.Context, job *entities.Job) bool {
	current, err := p.jobStore.GetJob(ctx, job.ID)
	if err != nil {
		return false
	}
	return current.Status == entities.JobCancelling
}

func (p *Pipeline) cancel(ctx context.Context, job *entities.Job) error {
	now := time.Now().UTC()
	status := entities.JobCancelled
	_, err := p.jobStore.UpdateJob(ctx, job.ID, job.TaskRef, entities.JobPatch{
		Status:  &status,
		EndedAt: &now,
	})
	if err != nil {
		return apperrors.PersistenceErr(err, "persist cancellation")
	}
	updated, _ := p.jobStore.GetJob(ctx, job.ID)
	if updated != nil {
		p.notify(ctx, updated)
	}
	return apperrors.CancelledErr("job %q cancelled", job.ID)
}

func (p *Pipeline) fail(ctx context.Context, job *entities.Job, kind entities.ErrorKind, step, message string) error {
	now := time.Now().UTC()
	status := entities.JobFailed
	_, err := p.jobStore.UpdateJob(ctx, job.ID, job.TaskRef, entities.JobPatch{
		Status:      &status,
		ErrorKind:   &kind,
		ErrorDetail: &entities.ErrorDetail{Step: step, Message: message},
		EndedAt:     &now,
	})
	if err != nil {
		return apperrors.PersistenceErr(err, "persist failure")
	}
	updated, _ := p.jobStore.GetJob(ctx, job.ID)
	if updated != nil {
		p.notify(ctx, updated)
	}
	return apperrors.ProcessingErr(nil, string(kind), message)
}

// progress persists a monotonically non-decreasing progress/status update
// and notifies the registered hook. JobStore.UpdateJob itself refuses to
// move progress backwards, so this is safe to call with stale values.
func (p *Pipeline) progress(ctx context.Context, job *entities.Job, status entities.JobStatus, pct int, message string) error {
	patch := entities.JobPatch{
		Status:        &status,
		Progress:      &pct,
		StatusMessage: &message,
	}
	updated, err := p.jobStore.UpdateJob(ctx, job.ID, job.TaskRef, patch)
	if err != nil {
		return apperrors.PersistenceErr(err, "persist progress")
	}
	job.Status = updated.Status
	job.Progress = updated.Progress
	job.StatusMessage = updated.StatusMessage
	p.notify(ctx, updated)
	return nil
}

func (p *Pipeline) notify(ctx context.Context, job *entities.Job) {
	if p.onProgress != nil {
		p.onProgress(ctx, job)
	}
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
