package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/resolver"
)

// apifyActor is the hosted scraping actor used as the third-party
// transcript provider.
const (
	apifyActor = "pintostudio~youtube-transcript-scraper"
	apifyBase  = "https://api.apify.com/v2"
)

// viaApify resolves through the Apify actor. Works from a bare URL; no
// page snapshot is needed.
func (s *session) viaApify(ctx context.Context) (*resolver.Result, error) {
	token := s.req.Credentials.ApifyAPIToken
	if token == "" {
		return nil, errors.New("no Apify token configured")
	}

	endpoint := s.apifyBase + "/acts/" + apifyActor +
		"/run-sync-get-dataset-items?token=" + url.QueryEscape(token)
	payload, err := json.Marshal(map[string]string{"videoUrl": s.watchURL()})
	if err != nil {
		return nil, err
	}

	data, err := s.req.Fetch.Post(ctx, endpoint, "application/json", payload, nil)
	if err != nil {
		return nil, fmt.Errorf("apify: %w", err)
	}

	segs := parseApifyItems(data)
	if len(segs) == 0 {
		return nil, errors.New("apify returned no transcript items")
	}
	return &resolver.Result{Text: captions.Text(segs), Segments: segs}, nil
}

// parseApifyItems reads the actor's dataset items. Item shape varies
// between actor versions; both a nested "data" list and a flat
// "transcript" list are accepted, with string-encoded second offsets.
func parseApifyItems(data []byte) []captions.Segment {
	root := jsonpath.Parse(data)
	items, ok := root.([]any)
	if !ok {
		return nil
	}

	var segs []captions.Segment
	for _, item := range items {
		entries := jsonpath.GetSlice(item, "data")
		if entries == nil {
			entries = jsonpath.GetSlice(item, "transcript")
		}
		for _, e := range entries {
			text := jsonpath.GetString(e, "text")
			if text == "" {
				continue
			}
			seg := captions.Segment{Text: text}
			if start, err := strconv.ParseFloat(jsonpath.GetString(e, "start"), 64); err == nil {
				seg.StartMs = int64(start * 1000)
				if dur, err := strconv.ParseFloat(jsonpath.GetString(e, "dur"), 64); err == nil && dur > 0 {
					end := seg.StartMs + int64(dur*1000)
					seg.EndMs = &end
				}
			}
			segs = append(segs, seg)
		}
	}
	return segs
}
