package youtube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/resolver"
)

// Track is one caption track attached to a video. Auto marks tracks from
// the auto-generated list; exclusion in manual-only selection goes by
// list membership, not the kind tag, because manual tracks are sometimes
// mislabeled.
type Track struct {
	LanguageCode string
	BaseURL      string
	Auto         bool
}

func isEnglish(code string) bool {
	code = strings.ToLower(code)
	return code == "en" || strings.HasPrefix(code, "en-")
}

// needsPoToken reports whether a caption track URL requires a browser-only
// PoToken. Such tracks cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// SelectTracks orders caption tracks for download: manual before
// auto-generated, English before other languages, original order on ties
// (stable sort), then deduplicated by lowercase language code keeping the
// first occurrence. With manualOnly the auto-generated list is excluded
// entirely.
func SelectTracks(tracks []Track, manualOnly bool) []Track {
	var cands []Track
	for _, t := range tracks {
		if t.Auto && manualOnly {
			continue
		}
		cands = append(cands, t)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Auto != cands[j].Auto {
			return !cands[i].Auto
		}
		ei, ej := isEnglish(cands[i].LanguageCode), isEnglish(cands[j].LanguageCode)
		if ei != ej {
			return ei
		}
		return false
	})

	seen := map[string]bool{}
	out := cands[:0]
	for _, t := range cands {
		lang := strings.ToLower(t.LanguageCode)
		if seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, t)
	}
	return out
}

// tracksFromPlayer extracts the caption track list from a player response
// tree (either the page-embedded ytInitialPlayerResponse or the ANDROID
// /player payload).
func tracksFromPlayer(root any) []Track {
	var tracks []Track
	list := jsonpath.GetSlice(root, "captions", "playerCaptionsTracklistRenderer", "captionTracks")
	for _, item := range list {
		t := Track{
			LanguageCode: jsonpath.GetString(item, "languageCode"),
			BaseURL:      jsonpath.GetString(item, "baseUrl"),
			Auto:         jsonpath.GetString(item, "kind") == "asr",
		}
		if t.BaseURL != "" {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// playerHintsDRM reports whether a player response advertises protected
// streams: DRM families on any adaptive format, or a playability reason
// naming content protection.
func playerHintsDRM(root any) bool {
	for _, f := range jsonpath.GetSlice(root, "streamingData", "adaptiveFormats") {
		if len(jsonpath.GetSlice(f, "drmFamilies")) > 0 {
			return true
		}
	}
	reason := strings.ToLower(jsonpath.GetString(root, "playabilityStatus", "reason"))
	return strings.Contains(reason, "drm") || strings.Contains(reason, "protected content")
}

// noteDRM latches a DRM hint for the session, so an exhausted chain can
// report drm_protected instead of no_transcript.
func (s *session) noteDRM(hinted bool) {
	if hinted && !s.drm {
		s.drm = true
		s.notes.Add("source advertises DRM-protected streams")
	}
}

// viaCaptionTracks resolves through direct caption-track download. Tracks
// come from the page snapshot when one was provided, otherwise from the
// ANDROID /player endpoint. Candidates download in priority order, json3
// first then timedtext XML, stopping at the first that yields text.
func (s *session) viaCaptionTracks(ctx context.Context, manualOnly bool) (*resolver.Result, error) {
	var tracks []Track
	if s.req.HTML != "" {
		if root := playerResponseFromHTML(s.req.HTML); root != nil {
			s.noteDRM(playerHintsDRM(root))
			tracks = tracksFromPlayer(root)
		}
	}
	if len(tracks) == 0 {
		root, err := s.playerResponse(ctx)
		if err != nil {
			return nil, err
		}
		s.noteDRM(playerHintsDRM(root))
		if reason := jsonpath.GetString(root, "playabilityStatus", "reason"); reason != "" && jsonpath.GetSlice(root, "captions", "playerCaptionsTracklistRenderer", "captionTracks") == nil {
			return nil, fmt.Errorf("captions unavailable: %s", reason)
		}
		tracks = tracksFromPlayer(root)
	}

	cands := SelectTracks(tracks, manualOnly)
	if len(cands) == 0 {
		if manualOnly && len(tracks) > 0 {
			return nil, errors.New("no manually authored caption tracks")
		}
		return nil, errors.New("no caption tracks")
	}

	for _, t := range cands {
		if needsPoToken(t.BaseURL) {
			s.notes.Addf("skipping %s caption track: requires browser PoToken", t.LanguageCode)
			continue
		}
		segs, err := s.fetchTrack(ctx, t)
		if err != nil {
			s.notes.Addf("caption track %s failed: %s", t.LanguageCode, resolver.Excerpt(err.Error(), 200))
			continue
		}
		text := captions.Text(segs)
		if strings.TrimSpace(text) == "" {
			continue
		}
		res := &resolver.Result{Text: text, Segments: segs}
		res.SetMeta("language", t.LanguageCode)
		res.SetMeta("autoGenerated", t.Auto)
		return res, nil
	}
	return nil, errors.New("no caption track yielded text")
}

// fetchTrack downloads one caption track, trying the json3 event-list
// format first and falling back to the timedtext XML the base URL serves
// by default.
func (s *session) fetchTrack(ctx context.Context, t Track) ([]captions.Segment, error) {
	sep := "?"
	if strings.Contains(t.BaseURL, "?") {
		sep = "&"
	}

	if data, err := s.req.Fetch.Get(ctx, t.BaseURL+sep+"fmt=json3", nil); err == nil {
		if segs, perr := captions.ParseJSON3(data); perr == nil && len(segs) > 0 {
			return segs, nil
		}
	}

	data, err := s.req.Fetch.Get(ctx, t.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return captions.ParseTimedText(data)
}

const playerResponseMarker = "ytInitialPlayerResponse = "

// playerResponseFromHTML scrapes the embedded player response JSON out of
// a watch page snapshot. Returns nil when the marker or a balanced JSON
// object cannot be found.
func playerResponseFromHTML(html string) any {
	idx := strings.Index(html, playerResponseMarker)
	if idx < 0 {
		return nil
	}
	raw := extractJSON([]byte(html[idx+len(playerResponseMarker):]))
	if raw == nil {
		return nil
	}
	return jsonpath.Parse(raw)
}

// extractJSON scans a balanced top-level JSON object from the start of
// data, respecting string literals and escapes.
func extractJSON(data []byte) []byte {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[:i+1]
			}
		}
	}
	return nil
}
