package pipeline

import (
	"context"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// runUpload implements the UploadPipeline from spec.md §4.6: the source
// file already sits on disk by the time the job is created, so the only
// work before Separate is recording its path.
func (p *Pipeline) runUpload(ctx context.Context, job *entities.Job) error {
	song, err := p.store.GetSong(ctx, job.SongID)
	if err != nil {
		return apperrors.PersistenceErr(err, "load song for job %q", job.ID)
	}

	if p.isCancelling(ctx, job) {
		return p.cancel(ctx, job)
	}
	if err := p.stepReceive(ctx, job, song); err != nil {
		return err
	}

	if p.isCancelling(ctx, job) {
		return p.cancel(ctx, job)
	}
	if err := p.stepSeparate(ctx, job, song); err != nil {
		return err
	}

	if p.isCancelling(ctx, job) {
		return p.cancel(ctx, job)
	}
	p.stepEnrichMetadata(ctx, job, song)
	p.stepEnrichLyrics(ctx, job, song)

	if p.isCancelling(ctx, job) {
		return p.cancel(ctx, job)
	}
	return p.stepFinalize(ctx, job, song)
}

// stepReceive records the already-uploaded file's path on Song, idempotent
// on Song.Paths.Original already being set.
func (p *Pipeline) stepReceive(ctx context.Context, job *entities.Job, song *entities.Song) error {
	if song.Paths.Original != "" {
		return nil
	}
	if job.Notes.Upload == nil {
		return p.fail(ctx, job, entities.ErrorInternal, "receive", "upload job missing notes.upload")
	}

	song.Paths.Original = job.Notes.Upload.SourcePath
	if _, err := p.store.UpdateSong(ctx, song.ID, entities.SongPatch{Paths: &song.Paths}); err != nil {
		return p.fail(ctx, job, entities.ErrorPersistence, "receive", "persist uploaded path: "+err.Error())
	}
	return p.progress(ctx, job, entities.JobProcessing, 30, "upload received")
}
