package collaborators

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the unconfigured defaults below; a real
// deployment wires a concrete Fetcher/Separator/LyricsProvider instead.
var ErrNotConfigured = errors.New("collaborator not configured")

// UnconfiguredFetcher always fails; it exists so a Dispatcher can be
// constructed before a real Fetcher binary/service is wired in.
type UnconfiguredFetcher struct{}

func (UnconfiguredFetcher) Fetch(ctx context.Context, videoID, sourceURL, destDir string) (FetchResult, error) {
	return FetchResult{}, ErrNotConfigured
}

// UnconfiguredSeparator always fails; see UnconfiguredFetcher.
type UnconfiguredSeparator struct{}

func (UnconfiguredSeparator) Separate(ctx context.Context, sourcePath, destDir, device string) (SeparationResult, error) {
	return SeparationResult{}, ErrNotConfigured
}

// UnconfiguredLyricsProvider always returns no candidates; EnrichLyrics is
// non-fatal (spec.md §4.6), so this degrades lyrics enrichment to a no-op
// rather than failing jobs.
type UnconfiguredLyricsProvider struct{}

func (UnconfiguredLyricsProvider) Search(ctx context.Context, artist, title, album string) ([]LyricsCandidate, error) {
	return nil, nil
}
