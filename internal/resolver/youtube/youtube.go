// Package youtube resolves YouTube watch URLs to transcripts through a
// mode-dependent provider chain: the internal get_transcript endpoint,
// direct caption-track download, the yt-dlp extractor, and a hosted
// scraping actor.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/resolver"
)

// Provider identifiers as they appear in the attempt log.
const (
	ProviderYoutubei      = "youtubei"
	ProviderCaptionTracks = "captionTracks"
	ProviderYtDlp         = "yt-dlp"
	ProviderApify         = "apify"
)

var videoIDRe = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// VideoID extracts the 11-character video id from a watch, share, shorts,
// embed or live URL.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid YouTube URL: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else {
			for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
				if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
					id = strings.SplitN(rest, "/", 2)[0]
					break
				}
			}
		}
	}

	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("no video id in URL %q", raw)
	}
	return id, nil
}

// session carries per-resolution state: the request, the bootstrap config
// scraped from the page snapshot, and cached provider responses.
type session struct {
	req     *resolver.Request
	videoID string
	boot    bootstrap
	notes   *resolver.Notes

	innertubeBase string
	apifyBase     string

	player any  // cached ANDROID /player response tree
	info   any  // cached yt-dlp metadata tree
	drm    bool // a provider reported DRM-protected streams
}

func newSession(req *resolver.Request, videoID string) *session {
	s := &session{
		req:           req,
		videoID:       videoID,
		notes:         &resolver.Notes{},
		innertubeBase: innertubeBase,
		apifyBase:     apifyBase,
	}
	s.boot = bootstrapFromHTML(req.HTML)
	if s.boot.visitorData == "" {
		s.boot.visitorData = generateVisitorData()
	}
	return s
}

func (s *session) watchURL() string {
	return "https://www.youtube.com/watch?v=" + s.videoID
}

// Resolve runs the mode-selected provider chain for a watch URL.
// Configuration impossibilities (a requested mode missing its credential
// or binary) are returned as errors; provider misses produce a result
// with empty text and a metadata reason.
func Resolve(ctx context.Context, req *resolver.Request) (*resolver.Result, error) {
	videoID, err := VideoID(req.URL)
	if err != nil {
		return nil, err
	}

	return newSession(req, videoID).resolve(ctx)
}

func (s *session) resolve(ctx context.Context) (*resolver.Result, error) {
	req := s.req

	attempts, err := s.attempts()
	if err != nil {
		return nil, err
	}

	var log resolver.AttemptLog
	res := resolver.RunChain(ctx, &log, s.notes, attempts)
	if res == nil {
		if req.Mode == resolver.ModeNoAuto && !s.ytdlpAvailable() {
			return nil, errors.New("no-auto requires yt-dlp")
		}
		res = &resolver.Result{}
		reason := resolver.ReasonNoTranscript
		if s.drm {
			reason = resolver.ReasonDRMProtected
		}
		res.SetMeta("reason", reason)
	}

	res.Notes = append(s.notes.Lines(), res.Notes...)
	res.SetMeta("providers", log.Providers())
	res.SetMeta("videoId", s.videoID)
	if secs, ok := s.resolveDuration(ctx); ok {
		res.SetMeta("durationSeconds", secs)
	}
	if !req.Timestamps {
		res.Segments = nil
	}
	return res, nil
}

// attempts builds the provider chain for the request's mode.
//
// In auto mode the actor is the last resort whenever the yt-dlp step
// itself cannot run (binary missing, or no transcription backend to
// hand audio to); when the extractor step is runnable it is the final
// provider, so a fully exhausted chain logs youtubei, captionTracks,
// yt-dlp, unavailable.
func (s *session) attempts() ([]resolver.Attempt, error) {
	creds := s.req.Credentials

	youtubei := resolver.Attempt{Name: ProviderYoutubei, Run: s.viaGetTranscript}
	tracks := resolver.Attempt{Name: ProviderCaptionTracks, Run: func(ctx context.Context) (*resolver.Result, error) {
		return s.viaCaptionTracks(ctx, false)
	}}
	manualTracks := resolver.Attempt{Name: ProviderCaptionTracks, Run: func(ctx context.Context) (*resolver.Result, error) {
		return s.viaCaptionTracks(ctx, true)
	}}
	ytdlp := resolver.Attempt{Name: ProviderYtDlp, Run: s.viaYtDlp}
	apify := resolver.Attempt{Name: ProviderApify, Run: s.viaApify}

	switch s.req.Mode {
	case resolver.ModeApify:
		if creds.ApifyAPIToken == "" {
			return nil, errors.New("apify mode requires an Apify API token (set APIFY_API_TOKEN)")
		}
		return []resolver.Attempt{apify}, nil

	case resolver.ModeWeb:
		return []resolver.Attempt{youtubei, tracks}, nil

	case resolver.ModeYtDlp:
		if !s.ytdlpAvailable() {
			return nil, errors.New("yt-dlp mode requires the yt-dlp binary (install it or set YT_DLP_PATH)")
		}
		return []resolver.Attempt{ytdlp}, nil

	case resolver.ModeNoAuto:
		ytdlp.When = s.ytdlpAvailable
		return []resolver.Attempt{manualTracks, ytdlp}, nil

	default: // auto
		ytdlpRunnable := func() bool {
			return s.ytdlpAvailable() && creds.HasTranscription()
		}
		ytdlp.When = ytdlpRunnable
		apify.When = func() bool {
			return creds.ApifyAPIToken != "" && !ytdlpRunnable()
		}
		return []resolver.Attempt{youtubei, tracks, ytdlp, apify}, nil
	}
}

// resolveDuration is a best-effort, independent lookup: page metadata
// first, then the lightweight player call, then the extractor. First
// non-null wins.
func (s *session) resolveDuration(ctx context.Context) (int, bool) {
	if m := lengthSecondsRe.FindStringSubmatch(s.req.HTML); len(m) == 2 {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			return secs, true
		}
	}

	if root, err := s.playerResponse(ctx); err == nil {
		if secs, err := strconv.Atoi(jsonpath.GetString(root, "videoDetails", "lengthSeconds")); err == nil && secs > 0 {
			return secs, true
		}
	}

	if s.ytdlpAvailable() {
		if root, err := s.dumpJSON(ctx); err == nil {
			if secs, ok := jsonpath.GetNumber(root, "duration"); ok && secs > 0 {
				return int(secs), true
			}
		}
	}
	return 0, false
}
