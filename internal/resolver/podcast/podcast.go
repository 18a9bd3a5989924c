// Package podcast resolves podcast episode pages to transcripts. Native
// feed transcripts are the cheapest, highest-fidelity source; every other
// provider acquires audio and hands it to the speech-to-text engine.
package podcast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/feed"
	"github.com/steipete/mediascribe/internal/resolver"
)

// Provider identifiers as they appear in the attempt log.
const (
	ProviderFeedTranscript = "feedTranscript"
	ProviderSpotifyEmbed   = "spotifyEmbed"
	ProviderPageAudio      = "pageAudio"
	ProviderEnclosure      = "enclosure"
	ProviderItunesSearch   = "itunesSearch"
	ProviderYtDlp          = "yt-dlp"
	ProviderOgAudio        = "ogAudio"
)

// TranscribeFunc turns a downloaded audio file into transcript text. The
// pipeline injects the Whisper engine here so the resolver can vet audio
// (preview-clip detection) without owning backend selection.
type TranscribeFunc func(ctx context.Context, path string) (text string, notes []string, err error)

// Resolver resolves podcast episodes.
type Resolver struct {
	Transcribe TranscribeFunc

	itunesAPI   string
	spotifyBase string
}

// episode carries per-resolution state gathered before the attempt chain
// runs: best-known titles, the feed URL, and cached provider responses.
type episode struct {
	req   *resolver.Request
	r     *Resolver
	notes *resolver.Notes

	title        string
	showTitle    string
	feedURL      string
	durationSecs int
	episodeAudio string // enclosure-equivalent URL from the iTunes lookup

	spotify *spotifyMeta
	feedDoc *feed.Feed

	sawAudio         bool
	missingKeys      bool
	transcribeFailed bool
}

func (e *episode) spotifyEmbedBase() string {
	if e.r.spotifyBase != "" {
		return e.r.spotifyBase
	}
	return "https://open.spotify.com"
}

// Resolve always returns a result; unexpected panics become a failed
// result with a descriptive note rather than an error to the caller.
func (r *Resolver) Resolve(ctx context.Context, req *resolver.Request) (res *resolver.Result) {
	e := &episode{req: req, r: r, notes: &resolver.Notes{}}
	defer func() {
		if p := recover(); p != nil {
			e.notes.Addf("unexpected resolver error: %v", p)
			res = e.failedResult(nil)
		}
	}()

	e.gatherMetadata(ctx)

	var log resolver.AttemptLog
	res = resolver.RunChain(ctx, &log, e.notes, e.attempts())
	if res == nil {
		res = e.failedResult(&log)
	} else {
		res.SetMeta("providers", log.Providers())
	}

	res.Notes = append(e.notes.Lines(), res.Notes...)
	if e.title != "" {
		res.SetMeta("episodeTitle", e.title)
	}
	if e.showTitle != "" {
		res.SetMeta("showTitle", e.showTitle)
	}
	if e.durationSecs > 0 {
		res.SetMeta("durationSeconds", e.durationSecs)
	}
	if !req.Timestamps {
		res.Segments = nil
	}
	return res
}

func (e *episode) failedResult(log *resolver.AttemptLog) *resolver.Result {
	res := &resolver.Result{}
	res.SetMeta("reason", e.failureReason())
	if log != nil {
		res.SetMeta("providers", log.Providers())
	}
	return res
}

// failureReason picks the stable metadata.reason code for a terminal
// failure, distinguishing "nothing to transcribe" from "had audio,
// transcription failed".
func (e *episode) failureReason() string {
	switch {
	case e.missingKeys:
		return resolver.ReasonMissingTranscriptionKeys
	case e.transcribeFailed:
		return resolver.ReasonTranscriptionFailed
	case !e.sawAudio && !resolver.YtDlpAvailable(e.req.Credentials):
		return resolver.ReasonNoEnclosureAndNoYtDlp
	default:
		return resolver.ReasonNoTranscript
	}
}

// gatherMetadata collects episode/show titles, the feed URL and claimed
// duration before the chain runs. Every lookup is best-effort.
func (e *episode) gatherMetadata(ctx context.Context) {
	if id, ok := spotifyEpisodeID(e.req.URL); ok {
		meta, err := e.fetchSpotifyMeta(ctx, id)
		if err != nil {
			e.notes.Addf("spotify metadata unavailable: %s", resolver.Excerpt(err.Error(), 200))
		} else {
			e.spotify = meta
			e.title = meta.title
			e.showTitle = meta.showTitle
			e.durationSecs = meta.durationSecs
		}
	}

	if podcastID, episodeID, ok := appleIDs(e.req.URL); ok {
		show, ep, err := e.itunesLookup(ctx, podcastID, episodeID)
		if err != nil {
			e.notes.Addf("itunes lookup failed: %s", resolver.Excerpt(err.Error(), 200))
		} else {
			e.feedURL = show.FeedURL
			if e.showTitle == "" {
				e.showTitle = show.CollectionName
			}
			if ep != nil {
				e.title = ep.TrackName
				e.episodeAudio = feed.DecodeEntities(ep.EpisodeURL)
				if ep.TrackTimeMillis > 0 {
					e.durationSecs = int(ep.TrackTimeMillis / 1000)
				}
			}
		}
	}

	if e.title == "" {
		e.title = pageTitle(e.req.HTML)
	}
	if e.feedURL == "" {
		e.feedURL = pageFeedURL(e.req.HTML)
	}
	if e.feedURL == "" {
		lower := strings.ToLower(e.req.URL)
		if strings.HasSuffix(lower, ".rss") || strings.HasSuffix(lower, ".xml") {
			e.feedURL = e.req.URL
		}
	}
}

func (e *episode) attempts() []resolver.Attempt {
	return []resolver.Attempt{
		{
			Name: ProviderFeedTranscript,
			When: func() bool { return e.feedURL != "" },
			Run:  e.viaFeedTranscript,
		},
		{
			Name: ProviderSpotifyEmbed,
			When: func() bool { return e.spotify != nil && e.spotify.audioURL != "" },
			Run:  e.viaSpotifyEmbed,
		},
		{
			Name: ProviderPageAudio,
			When: func() bool { return pageAudioURL(e.req.HTML) != "" },
			Run:  e.viaPageAudio,
		},
		{
			Name: ProviderEnclosure,
			When: func() bool { return e.feedURL != "" || e.episodeAudio != "" },
			Run:  e.viaEnclosure,
		},
		{
			Name: ProviderItunesSearch,
			When: func() bool { return e.title != "" || e.showTitle != "" },
			Run:  e.viaItunesSearch,
		},
		{
			Name: ProviderYtDlp,
			When: func() bool { return resolver.YtDlpAvailable(e.req.Credentials) },
			Run:  e.viaYtDlpAudio,
		},
		{
			Name: ProviderOgAudio,
			When: func() bool { return pageOgAudioURL(e.req.HTML) != "" },
			Run:  e.viaOgAudio,
		},
	}
}

// loadFeed fetches and caches the episode's feed.
func (e *episode) loadFeed(ctx context.Context) (*feed.Feed, error) {
	if e.feedDoc != nil {
		return e.feedDoc, nil
	}
	if e.feedURL == "" {
		return nil, errors.New("no feed URL known")
	}
	data, err := e.req.Fetch.Get(ctx, feed.DecodeEntities(e.feedURL), nil)
	if err != nil {
		return nil, fmt.Errorf("feed fetch: %w", err)
	}
	f, err := feed.Parse(data)
	if err != nil {
		return nil, err
	}
	e.feedDoc = f
	return f, nil
}

// findItem locates the episode in the feed by normalized title. When the
// input was the feed itself and no title is known, the newest item wins.
func (e *episode) findItem(f *feed.Feed) *feed.Item {
	if e.title != "" {
		if item := f.FindItem(e.title); item != nil {
			return item
		}
		return nil
	}
	if len(f.Items) > 0 {
		return &f.Items[0]
	}
	return nil
}

// viaFeedTranscript is the cheapest path: a podcast:transcript tag on the
// matching feed item. Success here skips Whisper entirely.
func (e *episode) viaFeedTranscript(ctx context.Context) (*resolver.Result, error) {
	f, err := e.loadFeed(ctx)
	if err != nil {
		return nil, err
	}
	item := e.findItem(f)
	if item == nil {
		return nil, fmt.Errorf("no feed item matching title %q", e.title)
	}
	if e.durationSecs == 0 && item.Duration > 0 {
		e.durationSecs = item.Duration
	}

	tr := item.BestTranscript()
	if tr == nil {
		return nil, errors.New("feed item has no transcript tag")
	}

	data, err := e.req.Fetch.Get(ctx, tr.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transcript download: %w", err)
	}
	segs, err := parseTranscriptPayload(data, tr.Type)
	if err != nil {
		return nil, err
	}
	text := captions.Text(segs)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("feed transcript is empty")
	}

	e.notes.Add("native feed transcript found; skipped Whisper")
	res := &resolver.Result{Text: text, Segments: segs}
	res.SetMeta("transcriptType", tr.Type)
	return res, nil
}

// parseTranscriptPayload decodes a podcast:transcript payload by its
// declared type, probing when the type is absent or unknown.
func parseTranscriptPayload(data []byte, typ string) ([]captions.Segment, error) {
	t := strings.ToLower(typ)
	switch {
	case strings.Contains(t, "json"):
		return captions.ParsePodcastJSON(data)
	case strings.Contains(t, "vtt"), strings.Contains(t, "srt"):
		return captions.ParseVTT(data)
	case strings.Contains(t, "xml"):
		return captions.ParseTimedText(data)
	}
	if segs, err := captions.ParsePodcastJSON(data); err == nil && len(segs) > 0 {
		return segs, nil
	}
	return captions.ParseVTT(data)
}

// viaSpotifyEmbed transcribes the embed page's audio URL, then applies
// the preview-clip heuristic: implausibly short text for the claimed
// duration means the audio was a promo clip, and the chain continues to
// the iTunes/RSS path instead of accepting it.
func (e *episode) viaSpotifyEmbed(ctx context.Context) (*resolver.Result, error) {
	res, err := e.transcribeURL(ctx, e.spotify.audioURL)
	if err != nil {
		return nil, err
	}
	if isPreviewClip(res.Text, e.durationSecs) {
		return nil, fmt.Errorf("embed audio transcribed to %d chars for a %ds episode; rejecting as preview clip",
			len(strings.TrimSpace(res.Text)), e.durationSecs)
	}
	return res, nil
}

func (e *episode) viaPageAudio(ctx context.Context) (*resolver.Result, error) {
	return e.transcribeURL(ctx, pageAudioURL(e.req.HTML))
}

// viaEnclosure transcribes the feed enclosure matched by normalized
// episode title, falling back to the iTunes lookup's episode URL.
func (e *episode) viaEnclosure(ctx context.Context) (*resolver.Result, error) {
	if e.feedURL != "" {
		f, err := e.loadFeed(ctx)
		if err == nil {
			if item := e.findItem(f); item != nil && item.Enclosure.URL != "" {
				if e.durationSecs == 0 && item.Duration > 0 {
					e.durationSecs = item.Duration
				}
				return e.transcribeURL(ctx, item.Enclosure.URL)
			}
		} else {
			e.notes.Addf("enclosure lookup: %s", resolver.Excerpt(err.Error(), 200))
		}
	}
	if e.episodeAudio != "" {
		return e.transcribeURL(ctx, e.episodeAudio)
	}
	return nil, errors.New("no enclosure for episode")
}

// viaItunesSearch finds the episode by title through the iTunes Search
// API when no feed is directly known.
func (e *episode) viaItunesSearch(ctx context.Context) (*resolver.Result, error) {
	term := strings.TrimSpace(e.showTitle + " " + e.title)
	hit, err := e.itunesSearch(ctx, term)
	if err != nil {
		return nil, err
	}

	if hit.EpisodeURL != "" {
		return e.transcribeURL(ctx, feed.DecodeEntities(hit.EpisodeURL))
	}
	if hit.FeedURL != "" && e.feedURL == "" {
		e.feedURL = hit.FeedURL
		e.feedDoc = nil
		return e.viaEnclosure(ctx)
	}
	return nil, errors.New("itunes hit has no audio URL")
}

// viaYtDlpAudio asks the extractor for a direct media URL on pages it
// understands.
func (e *episode) viaYtDlpAudio(ctx context.Context) (*resolver.Result, error) {
	bin := e.req.Credentials.YtDlpPath
	if bin == "" {
		bin = "yt-dlp"
	}
	out, err := e.req.Runner.Run(ctx, bin,
		"--no-config", "-j", "--skip-download", "--no-warnings", "--no-progress", e.req.URL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("yt-dlp exited %d: %s", out.ExitCode, resolver.Excerpt(string(out.Stderr), 200))
	}

	for _, line := range strings.Split(string(out.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		root := jsonpath.Parse([]byte(line))
		if u := jsonpath.GetString(root, "url"); u != "" {
			return e.transcribeURL(ctx, u)
		}
	}
	return nil, errors.New("yt-dlp found no media URL")
}

// viaOgAudio is the last resort; og:audio content is flagged as a
// possible preview clip since many sites point it at a teaser.
func (e *episode) viaOgAudio(ctx context.Context) (*resolver.Result, error) {
	res, err := e.transcribeURL(ctx, pageOgAudioURL(e.req.HTML))
	if err != nil {
		return nil, err
	}
	e.notes.Add("transcribed og:audio URL; may be a preview clip")
	res.SetMeta("possiblePreview", true)
	return res, nil
}

// transcribeURL downloads audio to a temp file and runs the injected
// speech-to-text engine over it.
func (e *episode) transcribeURL(ctx context.Context, audioURL string) (*resolver.Result, error) {
	e.sawAudio = true

	if !e.req.Credentials.HasTranscription() || e.r.Transcribe == nil {
		e.missingKeys = true
		return nil, errors.New("no transcription backends configured")
	}

	path, size, err := e.req.Fetch.Download(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("audio download: %w", err)
	}
	defer os.Remove(path)

	text, tnotes, err := e.r.Transcribe(ctx, path)
	for _, n := range tnotes {
		e.notes.Add(n)
	}
	if err != nil {
		e.transcribeFailed = true
		return nil, err
	}

	res := &resolver.Result{Text: text}
	res.SetMeta("audioBytes", size)
	return res, nil
}
