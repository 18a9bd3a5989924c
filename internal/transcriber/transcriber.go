// Package transcriber is the speech-to-text fallback engine: an ordered
// chain of backends (local whisper.cpp binary, then hosted APIs) with
// format-error retry via transcoding and size-based segmentation.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/run"
	"github.com/steipete/mediascribe/internal/resolver"
)

// Outcome is the terminal report of a transcription run. Failure is
// carried in Err, never thrown; Notes is the append-only audit trail
// explaining every fallback taken.
type Outcome struct {
	Text     string
	Provider string
	Err      error
	Notes    []string
}

// Progress reports per-segment advancement. It is a side channel only
// and never affects retry or fallback decisions.
type Progress struct {
	PartIndex                int
	Parts                    int
	ProcessedDurationSeconds float64
	TotalDurationSeconds     float64
}

// ProgressFunc receives Progress callbacks during chunked transcription.
type ProgressFunc func(Progress)

// Backend is one concrete speech-to-text provider.
type Backend interface {
	Name() string
	// Available reports whether the credential/binary precondition holds.
	// Unavailable backends are skipped silently, not counted as failures.
	Available() bool
	// MaxUploadBytes is the upload ceiling; 0 means unbounded.
	MaxUploadBytes() int64
	SupportsMedia(mediaType string) bool
	Transcribe(ctx context.Context, path string) (string, error)
}

// Engine selects among backends in a fixed order.
type Engine struct {
	backends       []Backend
	runner         run.Runner
	segmentSeconds int
	ffmpeg         string

	Progress ProgressFunc
}

// NewEngine wires the backend chain from credentials: local binary,
// then Groq, then OpenAI, then FAL.
func NewEngine(creds config.Credentials, runner run.Runner, client *fetch.Client, segmentSeconds int) *Engine {
	if segmentSeconds <= 0 {
		segmentSeconds = 600
	}
	return &Engine{
		backends: []Backend{
			newLocalBackend(creds.WhisperCppPath, creds.WhisperCppModel, runner),
			newGroqBackend(creds.GroqAPIKey),
			newOpenAIBackend(creds.OpenAIAPIKey),
			newFalBackend(creds.FalAPIKey, client),
		},
		runner:         runner,
		segmentSeconds: segmentSeconds,
		ffmpeg:         "ffmpeg",
	}
}

// MediaTypeForPath guesses a MIME type from the file extension. Unknown
// extensions are assumed to be audio, which every backend accepts.
func MediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	default:
		return "audio/mpeg"
	}
}

// Transcribe runs the backend chain over a media file. All failure is
// reported through the Outcome; the method itself never errors.
func (e *Engine) Transcribe(ctx context.Context, path, mediaType string) *Outcome {
	return e.attempt(ctx, path, mediaType, true)
}

func (e *Engine) attempt(ctx context.Context, path, mediaType string, allowSegmentation bool) *Outcome {
	out := &Outcome{}

	info, err := os.Stat(path)
	if err != nil {
		out.Err = fmt.Errorf("media file: %w", err)
		return out
	}
	size := info.Size()

	anyAvailable := false
	for _, b := range e.backends {
		if !b.Available() {
			continue
		}
		anyAvailable = true

		if !b.SupportsMedia(mediaType) {
			out.note("skipping %s: no support for %s input", b.Name(), mediaType)
			continue
		}

		if limit := b.MaxUploadBytes(); limit > 0 && size > limit {
			if !allowSegmentation {
				out.note("skipping %s: segment still exceeds its %d byte ceiling", b.Name(), limit)
				continue
			}
			if e.ffmpegAvailable() {
				text, provider, err := e.segmentAndTranscribe(ctx, path, mediaType, out)
				if err != nil {
					// Partial concatenations are never produced; a failed
					// part fails the whole chunked transcription.
					out.Err = err
					return out
				}
				out.Text = text
				out.Provider = provider
				return out
			}

			out.note("%s upload ceiling exceeded and ffmpeg is unavailable; uploading first %d bytes only", b.Name(), limit)
			truncated, terr := truncateFile(path, limit)
			if terr != nil {
				out.note("partial upload failed: %s", resolver.Excerpt(terr.Error(), 200))
				continue
			}
			text, berr := e.callWithFormatRetry(ctx, b, truncated, out)
			os.Remove(truncated)
			if berr == nil && strings.TrimSpace(text) != "" {
				out.note("transcript is partial: input exceeded the upload ceiling and could not be segmented")
				out.Text = text
				out.Provider = b.Name()
				return out
			}
			if berr != nil {
				out.noteFailure(b.Name(), berr)
			}
			continue
		}

		text, berr := e.callWithFormatRetry(ctx, b, path, out)
		if berr == nil && strings.TrimSpace(text) != "" {
			out.Text = text
			out.Provider = b.Name()
			return out
		}
		if berr != nil {
			out.noteFailure(b.Name(), berr)
			if ctx.Err() != nil {
				out.Err = fmt.Errorf("transcription aborted: %w", ctx.Err())
				return out
			}
			continue
		}
		out.note("%s returned empty text; falling back", b.Name())
	}

	if !anyAvailable {
		out.Err = errors.New("no transcription backends available: set GROQ_API_KEY, OPENAI_API_KEY, FAL_API_KEY, or configure whisper.cpp")
		return out
	}
	out.Err = errors.New("all transcription backends failed")
	return out
}

// callWithFormatRetry invokes one backend, retrying exactly once against
// the same backend after transcoding when the failure is a format/decode
// error. Any other failure falls straight through to the caller.
func (e *Engine) callWithFormatRetry(ctx context.Context, b Backend, path string, out *Outcome) (string, error) {
	text, err := b.Transcribe(ctx, path)
	if err == nil || !isFormatError(err) {
		return text, err
	}

	if !e.ffmpegAvailable() {
		out.note("%s reported a format error but ffmpeg is unavailable for transcoding", b.Name())
		return "", err
	}

	out.note("%s reported a format error; retrying once after transcoding", b.Name())
	converted, cerr := e.transcode(ctx, path)
	if cerr != nil {
		out.note("transcode failed: %s", resolver.Excerpt(cerr.Error(), 200))
		return "", err
	}
	defer os.Remove(converted)

	return b.Transcribe(ctx, converted)
}

// formatErrorMarkers are the known "backend cannot decode this media"
// responses that warrant the single retry-with-transcode.
var formatErrorMarkers = []string{
	"could not be decoded",
	"unrecognized format",
	"invalid file format",
	"unsupported file type",
	"file format is not supported",
}

func isFormatError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range formatErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (e *Engine) ffmpegAvailable() bool {
	return run.LookPath(e.ffmpeg)
}

// transcode rewrites the input as 16kHz mono MP3, the format every
// backend accepts.
func (e *Engine) transcode(ctx context.Context, path string) (string, error) {
	f, err := os.CreateTemp("", "mediascribe-transcoded-*.mp3")
	if err != nil {
		return "", err
	}
	f.Close()

	res, err := e.runner.Run(ctx, e.ffmpeg,
		"-y", "-i", path, "-vn", "-ar", "16000", "-ac", "1", "-b:a", "64k", f.Name())
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if res.ExitCode != 0 {
		os.Remove(f.Name())
		return "", fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, resolver.Excerpt(string(res.Stderr), 200))
	}
	return f.Name(), nil
}

// truncateFile copies the first limit bytes into a temp file for the
// degraded partial-upload path.
func truncateFile(path string, limit int64) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "mediascribe-partial-*"+filepath.Ext(path))
	if err != nil {
		return "", err
	}
	if _, err := io.CopyN(dst, src, limit); err != nil && err != io.EOF {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (o *Outcome) note(format string, args ...any) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

func (o *Outcome) noteFailure(backend string, err error) {
	kind := "transcription failed"
	if fetch.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		kind = "timed out"
	}
	o.note("%s %s: %s; falling back", backend, kind, resolver.Excerpt(err.Error(), 200))
}
