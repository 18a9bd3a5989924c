package podcast

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
)

// Preview-clip heuristic thresholds. Empirically tuned: a full episode
// transcript is never this short, but Spotify embed audio is often a
// trailer-length clip served under the episode's own metadata.
const (
	previewMinChars         = 200
	previewLongMinChars     = 800
	previewLongDurationSecs = 600
)

var spotifyEpisodeRe = regexp.MustCompile(`open\.spotify\.com/(?:embed/)?episode/([A-Za-z0-9]+)`)

func spotifyEpisodeID(raw string) (string, bool) {
	m := spotifyEpisodeRe.FindStringSubmatch(raw)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// spotifyMeta is what the lightweight embed page yields.
type spotifyMeta struct {
	title        string
	showTitle    string
	audioURL     string
	durationSecs int
}

// looksBlocked detects captcha-style interstitials that Spotify serves to
// suspicious clients in place of the embed page.
func looksBlocked(body []byte, err error) bool {
	var se *fetch.StatusError
	if errors.As(err, &se) && (se.Code == 403 || se.Code == 429) {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "captcha") || strings.Contains(lower, "challenge-platform")
}

// fetchSpotifyMeta loads the embed page for an episode and pulls metadata
// out of its __NEXT_DATA__ JSON. A blocked response is retried once
// through the scraping fallback when one is configured.
func (e *episode) fetchSpotifyMeta(ctx context.Context, episodeID string) (*spotifyMeta, error) {
	embedURL := e.spotifyEmbedBase() + "/embed/episode/" + episodeID

	body, err := e.req.Fetch.Get(ctx, embedURL, nil)
	if err != nil || looksBlocked(body, err) {
		if e.req.Scrape == nil {
			if err != nil {
				return nil, fmt.Errorf("spotify embed: %w", err)
			}
			return nil, errors.New("spotify embed blocked and no scrape fallback configured")
		}
		e.notes.Add("spotify embed blocked, retrying via scrape fallback")
		body, err = e.req.Scrape(ctx, embedURL)
		if err != nil {
			return nil, fmt.Errorf("spotify embed via scrape fallback: %w", err)
		}
	}

	meta := parseSpotifyEmbed(string(body))
	if meta == nil {
		return nil, errors.New("no episode entity in spotify embed page")
	}
	return meta, nil
}

var nextDataRe = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__" type="application/json"[^>]*>(.*?)</script>`)

func parseSpotifyEmbed(html string) *spotifyMeta {
	m := nextDataRe.FindStringSubmatch(html)
	if len(m) != 2 {
		return nil
	}
	root := jsonpath.Parse([]byte(m[1]))
	entity := jsonpath.Get(root, "props", "pageProps", "state", "data", "entity")
	if entity == nil {
		return nil
	}

	meta := &spotifyMeta{
		title:     jsonpath.GetString(entity, "name"),
		showTitle: jsonpath.GetString(entity, "subtitle"),
		audioURL:  jsonpath.GetString(entity, "audioPreview", "url"),
	}
	if meta.showTitle == "" {
		meta.showTitle = jsonpath.GetString(entity, "relatedEntityName")
	}
	if ms, ok := jsonpath.GetNumber(entity, "duration"); ok && ms > 0 {
		meta.durationSecs = int(ms / 1000)
	}
	if meta.title == "" && meta.audioURL == "" {
		return nil
	}
	return meta
}

// isPreviewClip applies the truncation heuristic: a transcript this short
// relative to the claimed duration means the audio was a promo clip, not
// the episode.
func isPreviewClip(text string, durationSecs int) bool {
	n := len(strings.TrimSpace(text))
	if n < previewMinChars {
		return true
	}
	return durationSecs >= previewLongDurationSecs && n < previewLongMinChars
}
