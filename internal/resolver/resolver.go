// Package resolver holds the shared transcript-resolution types and the
// ordered fallback-chain driver used by the YouTube, podcast and Whisper
// resolvers.
package resolver

import (
	"fmt"
	"os"
	"strings"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/run"
)

// Mode selects the YouTube resolution strategy.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeWeb    Mode = "web"
	ModeApify  Mode = "apify"
	ModeYtDlp  Mode = "yt-dlp"
	ModeNoAuto Mode = "no-auto"
)

// ParseMode validates a --mode flag value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeWeb, ModeApify, ModeYtDlp, ModeNoAuto:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, web, apify, yt-dlp or no-auto)", s)
	}
}

// Request carries one transcript resolution. It is built once per URL and
// treated as read-only by the resolvers.
type Request struct {
	URL         string
	HTML        string // pre-fetched page snapshot; empty forces API-only paths
	ResourceKey string
	Mode        Mode
	Timestamps  bool
	Languages   []string

	Fetch       *fetch.Client
	Scrape      fetch.ScrapeFunc // optional blocked-page fallback
	Runner      run.Runner
	Credentials config.Credentials
}

// Result is the outcome of a resolution attempt.
type Result struct {
	Text     string             `json:"text"`
	Segments []captions.Segment `json:"segments,omitempty"`
	Source   string             `json:"source,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
	Notes    []string           `json:"notes,omitempty"`
}

// SetMeta records a metadata value, allocating the map on first use.
func (r *Result) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
}

// Stable metadata.reason codes for terminal failures. Callers branch on
// these to tell "nothing to transcribe" from "had audio, transcription
// failed".
const (
	ReasonMissingTranscriptionKeys = "missing_transcription_keys"
	ReasonNoEnclosureAndNoYtDlp    = "no_enclosure_and_no_yt_dlp"
	ReasonNoTranscript             = "no_transcript"
	ReasonTranscriptionFailed      = "transcription_failed"
	ReasonDRMProtected             = "drm_protected"
)

// AttemptLog records provider identifiers in the order they were actually
// tried. The order is part of the resolver contract and is asserted in
// tests, not just logged.
type AttemptLog struct {
	tried []string
}

func (l *AttemptLog) Add(provider string) {
	l.tried = append(l.tried, provider)
}

func (l *AttemptLog) Providers() []string {
	return append([]string(nil), l.tried...)
}

// Notes is the append-only audit trail explaining every fallback decision.
type Notes struct {
	lines []string
}

func (n *Notes) Add(line string) {
	if line != "" {
		n.lines = append(n.lines, line)
	}
}

func (n *Notes) Addf(format string, args ...any) {
	n.Add(fmt.Sprintf(format, args...))
}

func (n *Notes) Lines() []string {
	return append([]string(nil), n.lines...)
}

// YtDlpAvailable reports whether the subprocess extractor can run: an
// explicitly configured path must exist, otherwise the bare binary name
// must resolve on PATH.
func YtDlpAvailable(creds config.Credentials) bool {
	if p := creds.YtDlpPath; p != "" {
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	}
	return run.LookPath("yt-dlp")
}

// Excerpt truncates provider error text for notes so a single verbose
// HTML error page cannot drown the audit trail.
func Excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
