// Package pipeline glues the resolvers together: classify the input,
// run the matching transcript resolver, and fall back to speech-to-text
// when no native transcript exists.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/run"
	"github.com/steipete/mediascribe/internal/resolver"
	"github.com/steipete/mediascribe/internal/resolver/podcast"
	"github.com/steipete/mediascribe/internal/resolver/youtube"
	"github.com/steipete/mediascribe/internal/transcriber"
)

// Cache stores prior transcripts keyed by resource key. The pipeline
// treats it as a plain get/set; persistence and concurrency control
// belong to the owner. Two racing requests may both compute a result.
type Cache interface {
	Get(key string) (*resolver.Result, bool)
	Set(key string, res *resolver.Result)
}

// Options select per-run behavior.
type Options struct {
	Mode        resolver.Mode
	Timestamps  bool
	HTML        string // pre-fetched page snapshot, avoids a second fetch
	ResourceKey string // cache correlation key; defaults to the input
}

// Pipeline resolves one input (URL or local file) to transcript text.
type Pipeline struct {
	cfg    *config.Config
	fetch  *fetch.Client
	runner run.Runner
	engine *transcriber.Engine
	cache  Cache
	scrape fetch.ScrapeFunc
	logger *log.Logger
}

// New builds a pipeline with the default HTTP client and subprocess
// runner.
func New(cfg *config.Config, logger *log.Logger) *Pipeline {
	client := fetch.NewClient()
	runner := run.ExecRunner{}
	return &Pipeline{
		cfg:    cfg,
		fetch:  client,
		runner: runner,
		engine: transcriber.NewEngine(cfg.Credentials, runner, client, cfg.SegmentSeconds),
		logger: logger,
	}
}

// WithCache attaches a transcript cache.
func (p *Pipeline) WithCache(c Cache) *Pipeline {
	p.cache = c
	return p
}

// WithScrape attaches the blocked-page scraping fallback.
func (p *Pipeline) WithScrape(fn fetch.ScrapeFunc) *Pipeline {
	p.scrape = fn
	return p
}

// Engine exposes the transcription engine, mainly to hang a progress
// callback on it.
func (p *Pipeline) Engine() *transcriber.Engine {
	return p.engine
}

// Run resolves input to a transcript. Provider misses surface as a
// result with empty text and a metadata reason; only configuration
// impossibilities return an error.
func (p *Pipeline) Run(ctx context.Context, input string, opts Options) (*resolver.Result, error) {
	key := opts.ResourceKey
	if key == "" {
		key = input
	}
	if p.cache != nil {
		if res, ok := p.cache.Get(key); ok {
			p.logger.Debug("cache hit", "key", key)
			return res, nil
		}
	}

	requestID := uuid.NewString()
	source := resolver.Classify(input)
	p.logger.Debug("classified input", "source", source, "request", requestID)

	req := &resolver.Request{
		URL:         input,
		HTML:        opts.HTML,
		ResourceKey: key,
		Mode:        opts.Mode,
		Timestamps:  opts.Timestamps,
		Languages:   p.cfg.Languages,
		Fetch:       p.fetch,
		Scrape:      p.scrape,
		Runner:      p.runner,
		Credentials: p.cfg.Credentials,
	}

	var res *resolver.Result
	var err error
	switch source {
	case resolver.SourceYouTube:
		res, err = p.resolveYouTube(ctx, req)
	case resolver.SourcePodcast:
		res = p.resolvePodcast(ctx, req)
	default:
		res, err = p.resolveMedia(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	res.SetMeta("sourceType", string(source))
	res.SetMeta("requestId", requestID)
	if p.cache != nil && strings.TrimSpace(res.Text) != "" {
		p.cache.Set(key, res)
	}
	return res, nil
}

// resolveYouTube runs the transcript resolver and, on a miss, extracts
// the audio with yt-dlp for the speech-to-text fallback.
func (p *Pipeline) resolveYouTube(ctx context.Context, req *resolver.Request) (*resolver.Result, error) {
	res, err := youtube.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) != "" {
		return res, nil
	}

	if !resolver.YtDlpAvailable(req.Credentials) {
		res.Notes = append(res.Notes, "no transcript found and yt-dlp is unavailable for audio extraction")
		return res, nil
	}
	if !req.Credentials.HasTranscription() {
		res.Notes = append(res.Notes, "no transcript found and no transcription backends are configured")
		res.SetMeta("reason", resolver.ReasonMissingTranscriptionKeys)
		return res, nil
	}

	p.logger.Info("no native transcript, extracting audio for transcription")
	audioPath, err := p.downloadYouTubeAudio(ctx, req)
	if err != nil {
		res.Notes = append(res.Notes, "audio extraction failed: "+resolver.Excerpt(err.Error(), 200))
		res.SetMeta("reason", resolver.ReasonTranscriptionFailed)
		return res, nil
	}
	defer os.Remove(audioPath)

	out := p.engine.Transcribe(ctx, audioPath, transcriber.MediaTypeForPath(audioPath))
	res.Notes = append(res.Notes, out.Notes...)
	if out.Err != nil {
		res.Notes = append(res.Notes, "transcription failed: "+resolver.Excerpt(out.Err.Error(), 200))
		res.SetMeta("reason", resolver.ReasonTranscriptionFailed)
		return res, nil
	}

	res.Text = out.Text
	res.Source = "whisper:" + out.Provider
	delete(res.Metadata, "reason")
	return res, nil
}

func (p *Pipeline) downloadYouTubeAudio(ctx context.Context, req *resolver.Request) (string, error) {
	bin := req.Credentials.YtDlpPath
	if bin == "" {
		bin = "yt-dlp"
	}

	f, err := os.CreateTemp("", "mediascribe-yt-*.m4a")
	if err != nil {
		return "", err
	}
	f.Close()
	os.Remove(f.Name())

	out, err := p.runner.Run(ctx, bin,
		"--no-config", "--no-warnings", "--no-progress",
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"-o", f.Name(),
		req.URL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("yt-dlp exited %d: %s", out.ExitCode, resolver.Excerpt(string(out.Stderr), 200))
	}
	if _, err := os.Stat(f.Name()); err != nil {
		return "", errors.New("yt-dlp reported success but produced no audio file")
	}
	return f.Name(), nil
}

func (p *Pipeline) resolvePodcast(ctx context.Context, req *resolver.Request) *resolver.Result {
	r := &podcast.Resolver{Transcribe: func(ctx context.Context, path string) (string, []string, error) {
		out := p.engine.Transcribe(ctx, path, transcriber.MediaTypeForPath(path))
		return out.Text, out.Notes, out.Err
	}}
	return r.Resolve(ctx, req)
}

// resolveMedia handles bare audio/video inputs: local paths go straight
// to the engine, remote URLs download first.
func (p *Pipeline) resolveMedia(ctx context.Context, input string) (*resolver.Result, error) {
	path := input
	var cleanup bool

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		var err error
		path, _, err = p.fetch.Download(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("media download: %w", err)
		}
		cleanup = true
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("media file: %w", err)
	}
	if cleanup {
		defer os.Remove(path)
	}

	out := p.engine.Transcribe(ctx, path, transcriber.MediaTypeForPath(path))
	res := &resolver.Result{Notes: out.Notes}
	if out.Err != nil {
		if !p.cfg.Credentials.HasTranscription() {
			res.SetMeta("reason", resolver.ReasonMissingTranscriptionKeys)
		} else {
			res.SetMeta("reason", resolver.ReasonTranscriptionFailed)
		}
		res.Notes = append(res.Notes, resolver.Excerpt(out.Err.Error(), 200))
		return res, nil
	}
	res.Text = out.Text
	res.Source = "whisper:" + out.Provider
	return res, nil
}
