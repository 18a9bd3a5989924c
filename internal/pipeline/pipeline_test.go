package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/run"
	"github.com/steipete/mediascribe/internal/resolver"
	"github.com/steipete/mediascribe/internal/transcriber"
)

type fakeRunner struct {
	stdout string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*run.Result, error) {
	return &run.Result{Stdout: []byte(f.stdout)}, nil
}

// whisperCreds wires the local whisper.cpp backend through stub files so
// the engine has exactly one available backend, driven by the fake
// runner.
func whisperCreds(t *testing.T) config.Credentials {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	model := filepath.Join(dir, "ggml-base.bin")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))
	return config.Credentials{
		WhisperCppPath:  bin,
		WhisperCppModel: model,
		YtDlpPath:       filepath.Join(dir, "missing-yt-dlp"),
	}
}

func newTestPipeline(t *testing.T, creds config.Credentials, runner run.Runner) *Pipeline {
	t.Helper()
	cfg := &config.Config{Languages: []string{"en"}, Credentials: creds, SegmentSeconds: 600}
	client := fetch.NewClient()
	return &Pipeline{
		cfg:    cfg,
		fetch:  client,
		runner: runner,
		engine: transcriber.NewEngine(creds, runner, client, cfg.SegmentSeconds),
		logger: log.New(io.Discard),
	}
}

func TestLocalMediaFileTranscribed(t *testing.T) {
	media := filepath.Join(t.TempDir(), "talk.mp3")
	require.NoError(t, os.WriteFile(media, []byte("audio"), 0o644))

	p := newTestPipeline(t, whisperCreds(t), &fakeRunner{stdout: "hello from whisper"})
	cache := NewMemCache()
	p.WithCache(cache)

	res, err := p.Run(context.Background(), media, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello from whisper", res.Text)
	assert.Equal(t, "whisper:whisper.cpp", res.Source)
	assert.Equal(t, "media", res.Metadata["sourceType"])

	cached, ok := cache.Get(media)
	require.True(t, ok, "successful transcripts are cached under the resource key")
	assert.Equal(t, "hello from whisper", cached.Text)
}

func TestCacheHitShortCircuits(t *testing.T) {
	cache := NewMemCache()
	cache.Set("https://example.com/ep.mp3", &resolver.Result{Text: "cached text", Source: "feedTranscript"})

	p := newTestPipeline(t, config.Credentials{}, &fakeRunner{})
	p.WithCache(cache)

	res, err := p.Run(context.Background(), "https://example.com/ep.mp3", Options{})
	require.NoError(t, err)
	assert.Equal(t, "cached text", res.Text)
	assert.Equal(t, "feedTranscript", res.Source)
	assert.Equal(t, true, res.Metadata["cached"])
}

func TestRemoteMediaDownloadAndTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3 bytes"))
	}))
	defer srv.Close()

	p := newTestPipeline(t, whisperCreds(t), &fakeRunner{stdout: "remote transcript"})

	res, err := p.Run(context.Background(), srv.URL+"/show/episode-42.mp3", Options{})
	require.NoError(t, err)
	assert.Equal(t, "remote transcript", res.Text)
	assert.Equal(t, "whisper:whisper.cpp", res.Source)
}

func TestMediaWithoutBackendsReportsMissingKeys(t *testing.T) {
	media := filepath.Join(t.TempDir(), "talk.mp3")
	require.NoError(t, os.WriteFile(media, []byte("audio"), 0o644))

	p := newTestPipeline(t, config.Credentials{}, &fakeRunner{})
	cache := NewMemCache()
	p.WithCache(cache)

	res, err := p.Run(context.Background(), media, Options{})
	require.NoError(t, err, "provider misses never surface as errors")
	assert.Empty(t, res.Text)
	assert.Equal(t, resolver.ReasonMissingTranscriptionKeys, res.Metadata["reason"])

	_, ok := cache.Get(media)
	assert.False(t, ok, "empty results are never cached")
}

func TestMissingLocalFileErrors(t *testing.T) {
	p := newTestPipeline(t, whisperCreds(t), &fakeRunner{})
	_, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media file")
}

func TestPodcastFeedRoutedToResolver(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/show/feed.rss":
			feed := `<?xml version="1.0"?>
<rss xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Test Show</title>
    <item>
      <title>Episode One</title>
      <enclosure url="BASE/audio.mp3" type="audio/mpeg"/>
      <podcast:transcript url="BASE/t.json" type="application/json"/>
    </item>
  </channel>
</rss>`
			w.Write([]byte(strings.ReplaceAll(feed, "BASE", srvURL)))
		case "/t.json":
			w.Write([]byte(`{"segments":[{"startTime":0,"endTime":2,"body":"first line"},{"startTime":2,"endTime":4,"body":"second line"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	p := newTestPipeline(t, whisperCreds(t), &fakeRunner{stdout: "never used"})

	res, err := p.Run(context.Background(), srv.URL+"/show/feed.rss", Options{})
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", res.Text)
	assert.Equal(t, "feedTranscript", res.Source)
	assert.Equal(t, "podcast", res.Metadata["sourceType"])
}

func TestDownloadYouTubeAudioWritesFile(t *testing.T) {
	written := filepath.Join(t.TempDir(), "out.m4a")
	runner := &fakeRunner{}
	p := newTestPipeline(t, config.Credentials{}, runnerFunc(func(ctx context.Context, name string, args ...string) (*run.Result, error) {
		// yt-dlp writes the file named by -o
		for i, a := range args {
			if a == "-o" {
				written = args[i+1]
				require.NoError(t, os.WriteFile(written, []byte("audio"), 0o644))
			}
		}
		return runner.Run(ctx, name, args...)
	}))

	req := &resolver.Request{URL: "https://youtu.be/dQw4w9WgXcQ"}
	path, err := p.downloadYouTubeAudio(context.Background(), req)
	require.NoError(t, err)
	defer os.Remove(path)
	assert.Equal(t, written, path)
}

type runnerFunc func(ctx context.Context, name string, args ...string) (*run.Result, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) (*run.Result, error) {
	return f(ctx, name, args...)
}
