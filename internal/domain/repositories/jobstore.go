package repositories

import (
	"context"

	"github.com/openkaraoke/studio/internal/domain/entities"
)

// JobStore specializes Store for Job records, per spec.md §4.4. SaveJob
// enforces the create-before-enqueue race fix; ReserveNextRunnable gives
// Dispatcher workers atomic, contention-safe reservation.
type JobStore interface {
	SaveJob(ctx context.Context, job *entities.Job) (*entities.Job, error)
	GetJob(ctx context.Context, id string) (*entities.Job, error)
	ListJobs(ctx context.Context) ([]entities.Job, error)

	// ReserveNextRunnable atomically selects one pending job, assigns it a
	// fresh taskRef, transitions it to reserved, and returns it. It returns
	// (nil, nil) when no job is reservable.
	ReserveNextRunnable(ctx context.Context) (*entities.Job, error)

	// UpdateJob applies patch to the job identified by id, provided taskRef
	// matches the job's current reservation; a taskRef mismatch is a silent
	// no-op, not an error. Progress never moves backwards (spec.md §8): a
	// patch Progress at or below the stored value leaves progress unchanged
	// while the patch's other fields still apply.
	UpdateJob(ctx context.Context, id, taskRef string, patch entities.JobPatch) (*entities.Job, error)

	// MarkCancelling transitions a job to "cancelling" regardless of which
	// worker holds its reservation; Dispatcher observes this cooperatively.
	MarkCancelling(ctx context.Context, id string) error

	// RequeueStaleReservations reopens jobs reserved more than olderThan ago
	// back to pending, for the Dispatcher's crash-recovery supervisor.
	RequeueStaleReservations(ctx context.Context, olderThanSeconds int) (int, error)

	// ReapTerminalJobs deletes terminal jobs older than the retention window.
	ReapTerminalJobs(ctx context.Context, olderThanSeconds int) (int, error)
}
