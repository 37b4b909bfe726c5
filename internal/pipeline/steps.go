package pipeline

import (
	"context"
	"time"

	"github.com/openkaraoke/studio/internal/apperrors"
	"github.com/openkaraoke/studio/internal/collaborators"
	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/storage"
)

// stepFetch implements §4.6 Fetch: idempotent on Song.Paths.Original
// already being set, since a crash recovery re-enters from the first
// incomplete step.
func (p *Pipeline) stepFetch(ctx context.Context, job *entities.Job, song *entities.Song) error {
	if song.Paths.Original != "" {
		return nil
	}
	if job.Notes.YouTube == nil {
		return p.fail(ctx, job, entities.ErrorInternal, "fetch", "youtube job missing notes.youtube")
	}

	if err := p.progress(ctx, job, entities.JobDownloading, 5, "downloading source media"); err != nil {
		return err
	}

	fetchCtx, cancel := withDeadline(ctx, p.timeouts.Fetch)
	defer cancel()

	layout := storage.NewLayout(p.libraryDir)
	dir, err := layout.SongDir(song.ID)
	if err != nil {
		return p.fail(ctx, job, entities.ErrorInternal, "fetch", "create song directory: "+err.Error())
	}

	result, err := p.fetcher.Fetch(fetchCtx, job.Notes.YouTube.VideoID, job.Notes.YouTube.SourceURL, dir)
	if err != nil {
		if fetchCtx.Err() != nil {
			return p.fail(ctx, job, entities.ErrorTimeout, "fetch", "fetch exceeded its deadline")
		}
		return p.fail(ctx, job, classifyFetchError(err), "fetch", err.Error())
	}

	song.Paths.Original = layout.RelativePath(song.ID, result.OriginalPath)
	song.DurationMs = result.DurationMs
	for _, t := range result.Thumbnails {
		song.YouTubeThumbnails = append(song.YouTubeThumbnails, entities.Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	if _, err := p.store.UpdateSong(ctx, song.ID, entities.SongPatch{Paths: &song.Paths}); err != nil {
		return p.fail(ctx, job, entities.ErrorPersistence, "fetch", "persist fetched paths: "+err.Error())
	}

	return p.progress(ctx, job, entities.JobProcessing, 30, "source media downloaded")
}

// classifyFetchError maps a collaborator-reported error to the taxonomy
// spec.md §4.6 names for Fetch. Collaborators are expected to use
// apperrors.Upstream internally; a bare error degrades to FetchNetwork.
func classifyFetchError(err error) entities.ErrorKind {
	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Code {
		case "FETCH_UNAVAILABLE":
			return entities.ErrorFetchUnavailable
		case "FETCH_FORMAT":
			return entities.ErrorFetchFormat
		}
	}
	return entities.ErrorFetchNetwork
}

// stepSeparate implements §4.6 Separate: idempotent on both stem paths
// already being set.
func (p *Pipeline) stepSeparate(ctx context.Context, job *entities.Job, song *entities.Song) error {
	if song.Paths.Vocals != "" && song.Paths.Instrumental != "" {
		return nil
	}

	if err := p.progress(ctx, job, entities.JobProcessing, 40, "separating vocals from instrumental"); err != nil {
		return err
	}

	sepCtx, cancel := withDeadline(ctx, p.timeouts.Separate)
	defer cancel()

	layout := storage.NewLayout(p.libraryDir)
	dir, err := layout.SongDir(song.ID)
	if err != nil {
		return p.fail(ctx, job, entities.ErrorInternal, "separate", "resolve song directory: "+err.Error())
	}

	result, err := p.separator.Separate(sepCtx, layout.AbsolutePath(song.Paths.Original), dir, p.device)
	if err != nil {
		if sepCtx.Err() != nil {
			return p.fail(ctx, job, entities.ErrorTimeout, "separate", "separation exceeded its deadline")
		}
		return p.fail(ctx, job, entities.ErrorSeparatorFailed, "separate", err.Error())
	}

	song.Paths.Vocals = result.VocalsPath
	song.Paths.Instrumental = result.InstrumentalPath
	if _, err := p.store.UpdateSong(ctx, song.ID, entities.SongPatch{Paths: &song.Paths}); err != nil {
		return p.fail(ctx, job, entities.ErrorPersistence, "separate", "persist separated paths: "+err.Error())
	}

	return p.progress(ctx, job, entities.JobProcessing, 90, "separation complete")
}

// stepEnrichMetadata implements §4.6 EnrichMetadata. Non-fatal: a search
// error or an empty result leaves Song untouched and returns silently; the
// error is neither logged nor recorded on the job.
func (p *Pipeline) stepEnrichMetadata(ctx context.Context, job *entities.Job, song *entities.Song) {
	metaCtx, cancel := withDeadline(ctx, p.timeouts.Metadata)
	defer cancel()

	candidates, err := p.metadata.Search(metaCtx, song.Artist, song.Title, song.Album, 5)
	if err != nil || len(candidates) == 0 {
		return
	}

	best := selectBestMetadataCandidate(song, candidates)
	if best == nil {
		return
	}

	patch := entities.SongPatch{
		Genre:    &best.Genre,
		Year:     &best.Year,
		Language: &best.Language,
		ITunes: &entities.ITunesIDs{
			TrackID:      best.TrackID,
			ArtistID:     best.ArtistID,
			CollectionID: best.CollectionID,
		},
	}
	p.store.UpdateSong(ctx, song.ID, patch)
}

// selectBestMetadataCandidate picks (1) an exact normalized (artist,title)
// match, else (2) the highest-similarity candidate, else nil, per
// spec.md §4.6.
func selectBestMetadataCandidate(song *entities.Song, candidates []collaborators.MetadataCandidate) *collaborators.MetadataCandidate {
	normalizedTitle := entities.NormalizeArtistName(song.Title)
	normalizedArtist := entities.NormalizeArtistName(song.Artist)

	for i := range candidates {
		c := &candidates[i]
		if entities.NormalizeArtistName(c.Title) == normalizedTitle && entities.NormalizeArtistName(c.Artist) == normalizedArtist {
			return c
		}
	}

	var best *collaborators.MetadataCandidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Similarity > best.Similarity {
			best = c
		}
	}
	if best != nil && best.Similarity <= 0 {
		return nil
	}
	return best
}

// stepEnrichLyrics implements §4.6 EnrichLyrics. Non-fatal.
func (p *Pipeline) stepEnrichLyrics(ctx context.Context, job *entities.Job, song *entities.Song) {
	lyricsCtx, cancel := withDeadline(ctx, p.timeouts.Lyrics)
	defer cancel()

	candidates, err := p.lyrics.Search(lyricsCtx, song.Artist, song.Title, song.Album)
	if err != nil || len(candidates) == 0 {
		return
	}

	chosen := candidates[0]
	for _, c := range candidates {
		if c.SyncedText == "" {
			continue
		}
		if abs64(c.DurationHintMs-song.DurationMs) <= 2000 {
			chosen = c
			break
		}
	}

	p.store.SetLyrics(ctx, &entities.Lyrics{
		SongID:         song.ID,
		PlainText:      chosen.PlainText,
		SyncedText:     chosen.SyncedText,
		LanguageCode:   chosen.LanguageCode,
		Source:         chosen.Source,
		DurationHintMs: chosen.DurationHintMs,
	})
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// stepFinalize implements §4.6 Finalize.
func (p *Pipeline) stepFinalize(ctx context.Context, job *entities.Job, song *entities.Song) error {
	completed := entities.SongCompleted
	if _, err := p.store.UpdateSong(ctx, song.ID, entities.SongPatch{Status: &completed}); err != nil {
		return p.fail(ctx, job, entities.ErrorPersistence, "finalize", "mark song completed: "+err.Error())
	}

	now := time.Now().UTC()
	status := entities.JobCompleted
	hundred := 100
	_, err := p.jobStore.UpdateJob(ctx, job.ID, job.TaskRef, entities.JobPatch{
		Status:   &status,
		Progress: &hundred,
		EndedAt:  &now,
	})
	if err != nil {
		return apperrors.PersistenceErr(err, "persist job completion")
	}
	updated, _ := p.jobStore.GetJob(ctx, job.ID)
	if updated != nil {
		p.notify(ctx, updated)
	}
	return nil
}
