package transcriber

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/steipete/mediascribe/internal/resolver"
)

// segmentFile splits the source into fixed-duration parts with ffmpeg's
// segment muxer. Parts land in a fresh temp directory under a numbered
// pattern so index order equals lexical order.
func (e *Engine) segmentFile(ctx context.Context, path string) ([]string, error) {
	dir, err := os.MkdirTemp("", "mediascribe-parts-")
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp3"
	}
	pattern := filepath.Join(dir, "part-%03d"+ext)

	res, err := e.runner.Run(ctx, e.ffmpeg,
		"-y", "-i", path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(e.segmentSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("ffmpeg segment: %w", err)
	}
	if res.ExitCode != 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("ffmpeg segment exited %d: %s", res.ExitCode, resolver.Excerpt(string(res.Stderr), 200))
	}

	parts, err := filepath.Glob(filepath.Join(dir, "part-*"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	sort.Strings(parts)
	if len(parts) == 0 {
		os.RemoveAll(dir)
		return nil, errors.New("ffmpeg produced no audio segments")
	}
	return parts, nil
}

// segmentAndTranscribe splits an oversized input and transcribes each
// part sequentially in ascending index order through the normal backend
// selection. Any part failure aborts the whole run; transcripts are
// joined with a blank line between parts.
func (e *Engine) segmentAndTranscribe(ctx context.Context, path, mediaType string, out *Outcome) (string, string, error) {
	parts, err := e.segmentFile(ctx, path)
	if err != nil {
		return "", "", err
	}
	defer os.RemoveAll(filepath.Dir(parts[0]))

	out.note("input exceeds the upload ceiling; split into %d parts of %ds", len(parts), e.segmentSeconds)

	total := float64(len(parts) * e.segmentSeconds)
	var texts []string
	provider := ""

	for i, part := range parts {
		partOut := e.attempt(ctx, part, mediaType, false)
		out.Notes = append(out.Notes, partOut.Notes...)
		if partOut.Err != nil {
			return "", "", fmt.Errorf("part %d/%d failed: %w", i+1, len(parts), partOut.Err)
		}
		if provider == "" {
			provider = partOut.Provider
		}
		if strings.TrimSpace(partOut.Text) != "" {
			texts = append(texts, partOut.Text)
		}

		if e.Progress != nil {
			e.Progress(Progress{
				PartIndex:                i,
				Parts:                    len(parts),
				ProcessedDurationSeconds: float64((i + 1) * e.segmentSeconds),
				TotalDurationSeconds:     total,
			})
		}
	}

	return strings.Join(texts, "\n\n"), provider, nil
}
