package pipeline

import (
	"context"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/domain/entities"
)

// runYouTube implements the YouTubePipeline from spec.md §4.6:
// Fetch -> Separate -> EnrichMetadata -> EnrichLyrics -> Finalize.
func (p *Pipeline) runYouTube(ctx context.Context, job *entities.Job) error {
	song, err := p.store.GetSong(ctx, job.SongID)
	if err != nil {
		return apperrors.PersistenceErr(err, "load song for job %q", job.ID)
	}

	if p.isCancelling(ctx, job) {
		return p.cancel(ctx, job)
	}
	if err := p.stepFetch(ctx, job, song); err != nil {
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
