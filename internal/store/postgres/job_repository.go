package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// jobRow is the sqlx scan target for the jobs table. ErrorDetail and Notes
// are stored as flat columns / JSON respectively, since Notes is a
// tagged-union the database has no native representation for.
type jobRow struct {
	ID                  string         `db:"id"`
	SongID              string         `db:"song_id"`
	Kind                string         `db:"kind"`
	Status              string         `db:"status"`
	Progress            int            `db:"progress"`
	StatusMessage       string         `db:"status_message"`
	TaskRef             string         `db:"task_ref"`
	ErrorKind           string         `db:"error_kind"`
	ErrorDetailStep     string         `db:"error_detail_step"`
	ErrorDetailMessage  string         `db:"error_detail_message"`
	NotesJSON           []byte         `db:"notes_json"`
	CreatedAt           time.Time      `db:"created_at"`
	StartedAt           sql.NullTime   `db:"started_at"`
	EndedAt             sql.NullTime   `db:"ended_at"`
	ReservedAt          sql.NullTime   `db:"reserved_at"`
}

func (r jobRow) toEntity() entities.Job {
	job := entities.Job{
		ID:            r.ID,
		SongID:        r.SongID,
		Kind:          entities.JobKind(r.Kind),
		Status:        entities.JobStatus(r.Status),
		Progress:      r.Progress,
		StatusMessage: r.StatusMessage,
		TaskRef:       r.TaskRef,
		ErrorKind:     entities.ErrorKind(r.ErrorKind),
		CreatedAt:     r.CreatedAt,
	}
	if r.ErrorDetailStep != "" || r.ErrorDetailMessage != "" {
		job.ErrorDetail = &entities.ErrorDetail{Step: r.ErrorDetailStep, Message: r.ErrorDetailMessage}
	}
	if len(r.NotesJSON) > 0 {
		_ = json.Unmarshal(r.NotesJSON, &job.Notes)
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		job.StartedAt = &t
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time
		job.EndedAt = &t
	}
	if r.ReservedAt.Valid {
		t := r.ReservedAt.Time
		job.ReservedAt = &t
	}
	return job
}

// JobRepository implements repositories.JobStore over Postgres, using
// SELECT ... FOR UPDATE SKIP LOCKED so multiple Dispatcher workers can poll
// concurrently without contending for the same row (spec.md §4.4/§5).
type JobRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewJobRepository(db *sqlx.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

func (r *JobRepository) SaveJob(ctx context.Context, job *entities.Job) (*entities.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = entities.JobPending
	}

	notes, err := json.Marshal(job.Notes)
	if err != nil {
		return nil, apperrors.Internalf(err, "marshal job notes")
	}

	var errStep, errMsg string
	if job.ErrorDetail != nil {
		errStep, errMsg = job.ErrorDetail.Step, job.ErrorDetail.Message
	}

	const q = `
		INSERT INTO jobs (
			id, song_id, kind, status, progress, status_message, task_ref,
			error_kind, error_detail_step, error_detail_message, notes_json
		) VALUES (
			:id, :song_id, :kind, :status, :progress, :status_message, :task_ref,
			:error_kind, :error_detail_step, :error_detail_message, :notes_json
		)
	`
	args := map[string]any{
		"id":                    job.ID,
		"song_id":               job.SongID,
		"kind":                  string(job.Kind),
		"status":                string(job.Status),
		"progress":              job.Progress,
		"status_message":        job.StatusMessage,
		"task_ref":              job.TaskRef,
		"error_kind":            string(job.ErrorKind),
		"error_detail_step":     errStep,
		"error_detail_message":  errMsg,
		"notes_json":            notes,
	}
	if _, err := r.db.NamedExecContext(ctx, q, args); err != nil {
		return nil, apperrors.PersistenceErr(err, "save job")
	}
	return r.GetJob(ctx, job.ID)
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*entities.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM jobs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("job", "job %q not found", id)
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "get job")
	}
	job := row.toEntity()
	return &job, nil
}

func (r *JobRepository) ListJobs(ctx context.Context) ([]entities.Job, error) {
	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM jobs ORDER BY created_at DESC`); err != nil {
		return nil, apperrors.PersistenceErr(err, "list jobs")
	}
	jobs := make([]entities.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toEntity())
	}
	return jobs, nil
}

// ReserveNextRunnable implements the atomic reservation spec.md §4.4/§4.5
// requires: one pending job is locked, stamped with a fresh taskRef and
// reservedAt, and flipped to reserved, all inside one transaction so two
// Dispatcher workers never double-reserve the same job.
func (r *JobRepository) ReserveNextRunnable(ctx context.Context) (*entities.Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "begin reservation transaction")
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row, `
		SELECT * FROM jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.PersistenceErr(err, "reserve next runnable job")
	}

	taskRef := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'reserved', task_ref = $1, reserved_at = $2, started_at = $3 WHERE id = $4`,
		taskRef, now, now, row.ID); err != nil {
		return nil, apperrors.PersistenceErr(err, "stamp job reservation")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.PersistenceErr(err, "commit reservation transaction")
	}

	row.Status = "reserved"
	row.TaskRef = taskRef
	job := row.toEntity()
	job.ReservedAt = &now
	job.StartedAt = &now
	return &job, nil
}

// UpdateJob applies patch only if taskRef still matches the job's current
// reservation, and never lets Progress move backwards, per the monotonicity
// property in spec.md §8. A taskRef mismatch (stale worker, already
// requeued) is treated as a silent no-op, not an error. A job marked
// cancelling keeps that status until the patch carries a terminal status,
// so the pipeline's next between-steps check still observes it.
func (r *JobRepository) UpdateJob(ctx context.Context, id, taskRef string, patch entities.JobPatch) (*entities.Job, error) {
	current, err := r.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.TaskRef != taskRef {
		return current, nil
	}

	if patch.Status != nil && (current.Status != entities.JobCancelling || patch.Status.IsTerminal()) {
		current.Status = *patch.Status
	}
	if patch.Progress != nil && *patch.Progress > current.Progress {
		current.Progress = *patch.Progress
	}
	if patch.StatusMessage != nil {
		current.StatusMessage = *patch.StatusMessage
	}
	if patch.ErrorKind != nil {
		current.ErrorKind = *patch.ErrorKind
	}
	if patch.ErrorDetail != nil {
		current.ErrorDetail = patch.ErrorDetail
	}
	if patch.StartedAt != nil {
		current.StartedAt = patch.StartedAt
	}
	if patch.EndedAt != nil {
		current.EndedAt = patch.EndedAt
	}

	notes, err := json.Marshal(current.Notes)
	if err != nil {
		return nil, apperrors.Internalf(err, "marshal job notes")
	}
	var errStep, errMsg string
	if current.ErrorDetail != nil {
		errStep, errMsg = current.ErrorDetail.Step, current.ErrorDetail.Message
	}

	const q = `
		UPDATE jobs SET
			status = :status, progress = :progress, status_message = :status_message,
			error_kind = :error_kind, error_detail_step = :error_detail_step,
			error_detail_message = :error_detail_message, notes_json = :notes_json,
			started_at = :started_at, ended_at = :ended_at
		WHERE id = :id AND task_ref = :task_ref
	`
	args := map[string]any{
		"id":                   current.ID,
		"task_ref":             taskRef,
		"status":               string(current.Status),
		"progress":             current.Progress,
		"status_message":       current.StatusMessage,
		"error_kind":           string(current.ErrorKind),
		"error_detail_step":    errStep,
		"error_detail_message": errMsg,
		"notes_json":           notes,
		"started_at":           current.StartedAt,
		"ended_at":             current.EndedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, q, args); err != nil {
		return nil, apperrors.PersistenceErr(err, "update job")
	}
	return current, nil
}

// MarkCancelling transitions a job to cancelling regardless of taskRef,
// since a cancellation request originates from the API, not the worker
// holding the reservation.
func (r *JobRepository) MarkCancelling(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'cancelling' WHERE id = $1 AND status NOT IN ('completed','failed','cancelled')`, id)
	if err != nil {
		return apperrors.PersistenceErr(err, "mark job cancelling")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.Conflictf("JOB_NOT_CANCELLABLE", "job %q is already terminal or missing", id)
	}
	return nil
}

func (r *JobRepository) RequeueStaleReservations(ctx context.Context, olderThanSeconds int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', task_ref = '', reserved_at = NULL
		WHERE status IN ('reserved','downloading','processing')
		AND reserved_at < now() - ($1 || ' seconds')::interval
	`, olderThanSeconds)
	if err != nil {
		return 0, apperrors.PersistenceErr(err, "requeue stale reservations")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Warn("requeued stale job reservations", zap.Int64("count", n))
	}
	return int(n), nil
}

func (r *JobRepository) ReapTerminalJobs(ctx context.Context, olderThanSeconds int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed','failed','cancelled')
		AND ended_at < now() - ($1 || ' seconds')::interval
	`, olderThanSeconds)
	if err != nil {
		return 0, apperrors.PersistenceErr(err, "reap terminal jobs")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
