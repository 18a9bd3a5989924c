package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steipete/mediascribe/internal/core/run"
)

type fakeBackend struct {
	name      string
	available bool
	limit     int64
	audioOnly bool
	fn        func(path string) (string, error)
	calls     []string
}

func (f *fakeBackend) Name() string          { return f.name }
func (f *fakeBackend) Available() bool       { return f.available }
func (f *fakeBackend) MaxUploadBytes() int64 { return f.limit }

func (f *fakeBackend) SupportsMedia(mediaType string) bool {
	if f.audioOnly {
		return strings.HasPrefix(mediaType, "audio/")
	}
	return true
}

func (f *fakeBackend) Transcribe(ctx context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	return f.fn(path)
}

type fakeRunner struct {
	handle func(name string, args []string) (*run.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*run.Result, error) {
	if f.handle == nil {
		return &run.Result{}, nil
	}
	return f.handle(name, args)
}

// fakeFfmpeg satisfies the LookPath availability check without a real
// transcoder; the fake runner intercepts the actual invocation.
func fakeFfmpeg(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func audioFile(t *testing.T, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.mp3")
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("a", size)), 0o644))
	return p
}

func newTestEngine(runner run.Runner, backends ...Backend) *Engine {
	return &Engine{
		backends:       backends,
		runner:         runner,
		segmentSeconds: 600,
		ffmpeg:         "definitely-not-installed-ffmpeg",
	}
}

func TestBackendOrderAndFallback(t *testing.T) {
	first := &fakeBackend{name: "groq", available: true, fn: func(string) (string, error) {
		return "", errors.New("rate limited")
	}}
	second := &fakeBackend{name: "openai", available: true, fn: func(string) (string, error) {
		return "transcript text", nil
	}}

	e := newTestEngine(&fakeRunner{}, first, second)
	out := e.Transcribe(context.Background(), audioFile(t, 10), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Equal(t, "transcript text", out.Text)
	assert.Equal(t, "openai", out.Provider)
	assert.Len(t, first.calls, 1)
	assert.Contains(t, strings.Join(out.Notes, "\n"), "groq transcription failed")
	assert.Contains(t, strings.Join(out.Notes, "\n"), "falling back")
}

func TestUnavailableBackendsSkippedSilently(t *testing.T) {
	unavailable := &fakeBackend{name: "whisper.cpp", available: false, fn: func(string) (string, error) {
		t.Fatal("unavailable backend must not be called")
		return "", nil
	}}
	ok := &fakeBackend{name: "groq", available: true, fn: func(string) (string, error) {
		return "hello", nil
	}}

	e := newTestEngine(&fakeRunner{}, unavailable, ok)
	out := e.Transcribe(context.Background(), audioFile(t, 10), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Empty(t, unavailable.calls)
	assert.Empty(t, out.Notes, "skipped-unavailable backends leave no failure notes")
}

func TestNoBackendsAvailable(t *testing.T) {
	e := newTestEngine(&fakeRunner{}, &fakeBackend{name: "groq", available: false})
	out := e.Transcribe(context.Background(), audioFile(t, 10), "audio/mpeg")

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "no transcription backends available")
}

func TestUnsupportedMediaSkippedWithNote(t *testing.T) {
	audio := &fakeBackend{name: "fal", available: true, audioOnly: true, fn: func(string) (string, error) {
		t.Fatal("must not receive video input")
		return "", nil
	}}

	e := newTestEngine(&fakeRunner{}, audio)
	out := e.Transcribe(context.Background(), audioFile(t, 10), "video/mp4")

	require.Error(t, out.Err)
	assert.Contains(t, strings.Join(out.Notes, "\n"), "skipping fal")
}

func TestFormatErrorRetriesOnceSameBackend(t *testing.T) {
	calls := 0
	b := &fakeBackend{name: "groq", available: true, fn: func(path string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("the file could not be decoded or its format is not supported")
		}
		return "decoded after transcode", nil
	}}

	runner := &fakeRunner{handle: func(name string, args []string) (*run.Result, error) {
		return &run.Result{}, nil // transcode "succeeds"
	}}
	e := newTestEngine(runner, b)
	e.ffmpeg = fakeFfmpeg(t)

	out := e.Transcribe(context.Background(), audioFile(t, 10), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Equal(t, "decoded after transcode", out.Text)
	assert.Equal(t, 2, calls, "exactly one retry against the same backend")
	require.Len(t, b.calls, 2)
	assert.NotEqual(t, b.calls[0], b.calls[1], "retry uses the transcoded file")
	assert.Contains(t, strings.Join(out.Notes, "\n"), "retrying once after transcoding")
}

func TestFormatErrorWithoutFfmpegFallsThrough(t *testing.T) {
	bad := &fakeBackend{name: "groq", available: true, fn: func(string) (string, error) {
		return "", errors.New("unrecognized format")
	}}
	good := &fakeBackend{name: "openai", available: true, fn: func(string) (string, error) {
		return "ok", nil
	}}

	e := newTestEngine(&fakeRunner{}, bad, good)
	out := e.Transcribe(context.Background(), audioFile(t, 10), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Equal(t, "openai", out.Provider)
	assert.Len(t, bad.calls, 1, "no retry when transcoding is unavailable")
	assert.Contains(t, strings.Join(out.Notes, "\n"), "ffmpeg is unavailable")
}

// segmentingRunner emulates ffmpeg's segment muxer by writing part files
// matching the numbered output pattern.
func segmentingRunner(t *testing.T, parts int) *fakeRunner {
	return &fakeRunner{handle: func(name string, args []string) (*run.Result, error) {
		pattern := args[len(args)-1]
		require.Contains(t, pattern, "part-%03d")
		for i := 0; i < parts; i++ {
			p := strings.Replace(pattern, "%03d", fmt.Sprintf("%03d", i), 1)
			require.NoError(t, os.WriteFile(p, []byte("part"), 0o644))
		}
		return &run.Result{}, nil
	}}
}

func TestChunkedTranscriptionJoinsInIndexOrder(t *testing.T) {
	b := &fakeBackend{name: "groq", available: true, limit: 100, fn: func(path string) (string, error) {
		return "T:" + filepath.Base(path), nil
	}}

	e := newTestEngine(segmentingRunner(t, 2), b)
	e.ffmpeg = fakeFfmpeg(t)

	var progress []Progress
	e.Progress = func(p Progress) { progress = append(progress, p) }

	out := e.Transcribe(context.Background(), audioFile(t, 500), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Equal(t, "T:part-000.mp3\n\nT:part-001.mp3", out.Text)
	assert.Equal(t, "groq", out.Provider)
	require.Len(t, progress, 2)
	assert.Equal(t, 0, progress[0].PartIndex)
	assert.Equal(t, 2, progress[0].Parts)
}

func TestZeroSegmentsIsFatal(t *testing.T) {
	b := &fakeBackend{name: "groq", available: true, limit: 100, fn: func(string) (string, error) {
		return "never", nil
	}}

	e := newTestEngine(segmentingRunner(t, 0), b)
	e.ffmpeg = fakeFfmpeg(t)

	out := e.Transcribe(context.Background(), audioFile(t, 500), "audio/mpeg")
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "ffmpeg produced no audio segments")
}

func TestPartFailureAbortsChunkedRun(t *testing.T) {
	b := &fakeBackend{name: "groq", available: true, limit: 100, fn: func(path string) (string, error) {
		if strings.Contains(path, "part-001") {
			return "", errors.New("boom")
		}
		return "T:" + filepath.Base(path), nil
	}}

	e := newTestEngine(segmentingRunner(t, 2), b)
	e.ffmpeg = fakeFfmpeg(t)

	out := e.Transcribe(context.Background(), audioFile(t, 500), "audio/mpeg")
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "part 2/2 failed")
	assert.Empty(t, out.Text, "no partial concatenation is ever produced")
}

func TestPartialUploadWhenSegmentationUnavailable(t *testing.T) {
	var got []byte
	b := &fakeBackend{name: "groq", available: true, limit: 100, fn: func(path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		got = data
		return "partial transcript", nil
	}}

	e := newTestEngine(&fakeRunner{}, b) // ffmpeg not resolvable
	out := e.Transcribe(context.Background(), audioFile(t, 500), "audio/mpeg")

	require.NoError(t, out.Err)
	assert.Equal(t, "partial transcript", out.Text)
	assert.Len(t, got, 100, "only the first limit bytes are uploaded")
	assert.Contains(t, strings.Join(out.Notes, "\n"), "partial")
}

func TestIsFormatError(t *testing.T) {
	assert.True(t, isFormatError(errors.New("Audio could not be decoded")))
	assert.True(t, isFormatError(errors.New("unrecognized format: xyz")))
	assert.False(t, isFormatError(errors.New("401 unauthorized")))
	assert.False(t, isFormatError(errors.New("rate limit exceeded")))
}

func TestMediaTypeForPath(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MediaTypeForPath("/x/a.mp3"))
	assert.Equal(t, "video/mp4", MediaTypeForPath("/x/a.MP4"))
	assert.Equal(t, "audio/wav", MediaTypeForPath("a.wav"))
	assert.Equal(t, "audio/mpeg", MediaTypeForPath("a.unknown"))
}
