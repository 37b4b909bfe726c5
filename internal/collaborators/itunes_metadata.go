package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ITunesMetadataProvider implements MetadataProvider against Apple's public
// iTunes Search API, the source named in spec.md's glossary.
type ITunesMetadataProvider struct {
	client  *http.Client
	baseURL string
}

func NewITunesMetadataProvider(client *http.Client) *ITunesMetadataProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &ITunesMetadataProvider{client: client, baseURL: "https://itunes.apple.com/search"}
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	TrackID          int64  `json:"trackId"`
	ArtistID         int64  `json:"artistId"`
	CollectionID     int64  `json:"collectionId"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	PrimaryGenreName string `json:"primaryGenreName"`
	ReleaseDate      string `json:"releaseDate"`
}

func (p *ITunesMetadataProvider) Search(ctx context.Context, artist, title, album string, limit int) ([]MetadataCandidate, error) {
	if limit <= 0 {
		limit = 5
	}
	term := strings.TrimSpace(artist + " " + title)

	q := url.Values{}
	q.Set("term", term)
	q.Set("entity", "song")
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build itunes request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes returned status %d", resp.StatusCode)
	}

	var parsed itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode itunes response: %w", err)
	}

	candidates := make([]MetadataCandidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		year := 0
		if len(r.ReleaseDate) >= 4 {
			fmt.Sscanf(r.ReleaseDate[:4], "%d", &year)
		}
		candidates = append(candidates, MetadataCandidate{
			Title:        r.TrackName,
			Artist:       r.ArtistName,
			Album:        r.CollectionName,
			Genre:        r.PrimaryGenreName,
			Year:         year,
			TrackID:      r.TrackID,
			ArtistID:     r.ArtistID,
			CollectionID: r.CollectionID,
			Similarity:   similarity(strings.ToLower(artist+" "+title), strings.ToLower(r.ArtistName+" "+r.TrackName)),
		})
	}
	return candidates, nil
}

// similarity is a cheap token-overlap score in [0,1], used to rank
// candidates when no exact (artist,title) match exists (spec.md §4.6).
func similarity(a, b string) float64 {
	aTokens := strings.Fields(a)
	bSet := make(map[string]bool)
	for _, t := range strings.Fields(b) {
		bSet[t] = true
	}
	if len(aTokens) == 0 {
		return 0
	}
	matches := 0
	for _, t := range aTokens {
		if bSet[t] {
			matches++
		}
	}
	return float64(matches) / float64(len(aTokens))
}
