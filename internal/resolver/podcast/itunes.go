package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/steipete/mediascribe/internal/feed"
)

const itunesBase = "https://itunes.apple.com"

// Apple episode URLs:
// https://podcasts.apple.com/us/podcast/show-name/id173001861?i=1000682587885
var appleURLRe = regexp.MustCompile(`podcasts\.apple\.com.*?/(?:podcast/)?(?:[^/]+/)?id(\d+)(?:\?i=(\d+))?`)

func appleIDs(raw string) (podcastID, episodeID string, ok bool) {
	m := appleURLRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", "", false
	}
	podcastID = m[1]
	if len(m) >= 3 {
		episodeID = m[2]
	}
	return podcastID, episodeID, true
}

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	WrapperType     string `json:"wrapperType"`
	Kind            string `json:"kind"`
	TrackID         int64  `json:"trackId"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackName       string `json:"trackName"`
	TrackTimeMillis int64  `json:"trackTimeMillis"`
	FeedURL         string `json:"feedUrl"`
	EpisodeURL      string `json:"episodeUrl"`
}

// itunesLookup resolves a podcast id (optionally a specific episode) via
// the iTunes Lookup API.
func (e *episode) itunesLookup(ctx context.Context, podcastID, episodeID string) (*itunesResult, *itunesResult, error) {
	u := fmt.Sprintf("%s/lookup?id=%s&entity=podcastEpisode&limit=200", e.itunesBase(), url.QueryEscape(podcastID))
	data, err := e.req.Fetch.Get(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("itunes lookup: %w", err)
	}

	var resp itunesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("itunes lookup: %w", err)
	}

	var show, ep *itunesResult
	for i := range resp.Results {
		r := &resp.Results[i]
		switch {
		case r.WrapperType == "track" && r.Kind == "podcast":
			show = r
		case r.WrapperType == "podcastEpisode":
			if episodeID != "" && fmt.Sprintf("%d", r.TrackID) == episodeID {
				ep = r
			}
		}
	}
	if show == nil && len(resp.Results) > 0 {
		show = &resp.Results[0]
	}
	if show == nil {
		return nil, nil, fmt.Errorf("itunes lookup: podcast %s not found", podcastID)
	}
	return show, ep, nil
}

// itunesSearch finds an episode by title via the iTunes Search API,
// preferring a normalized exact title match over the first hit.
func (e *episode) itunesSearch(ctx context.Context, term string) (*itunesResult, error) {
	u := fmt.Sprintf("%s/search?media=podcast&entity=podcastEpisode&limit=25&term=%s",
		e.itunesBase(), url.QueryEscape(term))
	data, err := e.req.Fetch.Get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}

	var resp itunesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("itunes search: no results for %q", term)
	}

	if want := feed.NormalizeTitle(e.title); want != "" {
		for i := range resp.Results {
			if feed.NormalizeTitle(resp.Results[i].TrackName) == want {
				return &resp.Results[i], nil
			}
		}
	}
	return &resp.Results[0], nil
}

func (e *episode) itunesBase() string {
	if e.r.itunesAPI != "" {
		return e.r.itunesAPI
	}
	return itunesBase
}
