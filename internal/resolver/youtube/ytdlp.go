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

// ytdlpBin resolves the extractor binary: an explicit configured path
// wins, otherwise the bare name is looked up on PATH.
func (s *session) ytdlpBin() string {
	if p := s.req.Credentials.YtDlpPath; p != "" {
		return p
	}
	return "yt-dlp"
}

func (s *session) ytdlpAvailable() bool {
	return resolver.YtDlpAvailable(s.req.Credentials)
}

// dumpJSON runs the extractor once per session and caches the metadata
// tree; transcript and duration lookups share the same invocation.
func (s *session) dumpJSON(ctx context.Context) (any, error) {
	if s.info != nil {
		return s.info, nil
	}

	res, err := s.req.Runner.Run(ctx, s.ytdlpBin(),
		"--no-config", "-j", "--skip-download", "--no-warnings", "--no-progress",
		s.watchURL())
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("yt-dlp exited %d: %s", res.ExitCode, resolver.Excerpt(string(res.Stderr), 200))
	}

	// Warnings can precede the JSON line; take the first line that parses.
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if root := jsonpath.Parse([]byte(line)); root != nil {
			s.info = root
			s.noteDRM(infoHintsDRM(root))
			return root, nil
		}
	}
	return nil, errors.New("yt-dlp produced no metadata JSON")
}

// infoHintsDRM reports whether extractor metadata flags any format as
// DRM-protected.
func infoHintsDRM(root any) bool {
	for _, f := range jsonpath.GetSlice(root, "formats") {
		if hasDRM, _ := jsonpath.Get(f, "has_drm").(bool); hasDRM {
			return true
		}
	}
	return false
}

// viaYtDlp resolves through the subprocess extractor: dump metadata, pick
// a subtitle URL (manual subtitles first, auto captions unless the mode
// forbids them), download and parse it.
func (s *session) viaYtDlp(ctx context.Context) (*resolver.Result, error) {
	root, err := s.dumpJSON(ctx)
	if err != nil {
		return nil, err
	}

	subURL, ext, lang, auto := pickSubtitle(root, s.req.Languages, s.req.Mode == resolver.ModeNoAuto)
	if subURL == "" {
		return nil, errors.New("yt-dlp found no subtitle tracks")
	}

	data, err := s.req.Fetch.Get(ctx, subURL, nil)
	if err != nil {
		return nil, fmt.Errorf("subtitle download: %w", err)
	}

	var segs []captions.Segment
	switch ext {
	case "json3":
		segs, err = captions.ParseJSON3(data)
	case "vtt":
		segs, err = captions.ParseVTT(data)
	default:
		segs, err = captions.ParseTimedText(data)
	}
	if err != nil {
		return nil, err
	}

	res := &resolver.Result{Text: captions.Text(segs), Segments: segs}
	res.SetMeta("language", lang)
	res.SetMeta("autoGenerated", auto)
	return res, nil
}

// pickSubtitle chooses a subtitle URL from yt-dlp metadata. The subtitles
// map holds manually authored tracks, automatic_captions the ASR ones.
func pickSubtitle(root any, langs []string, manualOnly bool) (url, ext, lang string, auto bool) {
	type pool struct {
		key  string
		auto bool
	}
	pools := []pool{{"subtitles", false}}
	if !manualOnly {
		pools = append(pools, pool{"automatic_captions", true})
	}

	prefs := append([]string{}, langs...)
	prefs = append(prefs, "en", "en-US", "en-GB", "en-orig")

	for _, p := range pools {
		m := jsonpath.GetMap(root, p.key)
		if len(m) == 0 {
			continue
		}
		for _, code := range prefs {
			if u, e := subtitleEntry(m[code]); u != "" {
				return u, e, code, p.auto
			}
		}
		// No preferred language matched; scan the rest in sorted order so
		// the same metadata always yields the same track.
		codes := make([]string, 0, len(m))
		for code := range m {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			if u, e := subtitleEntry(m[code]); u != "" {
				return u, e, code, p.auto
			}
		}
	}
	return "", "", "", false
}

// subtitleEntry picks the best format from one language's track list,
// preferring json3, then vtt.
func subtitleEntry(entry any) (url, ext string) {
	formats, ok := entry.([]any)
	if !ok {
		return "", ""
	}
	for _, want := range []string{"json3", "vtt"} {
		for _, f := range formats {
			if jsonpath.GetString(f, "ext") == want {
				return jsonpath.GetString(f, "url"), want
			}
		}
	}
	if len(formats) > 0 {
		return jsonpath.GetString(formats[0], "url"), jsonpath.GetString(formats[0], "ext")
	}
	return "", ""
}
