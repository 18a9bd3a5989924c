// Package captions decodes timed-text payloads into plain lines and
// optional timed segments: the YouTube json3 event list, the timedtext
// XML variants, WebVTT, and the podcast-namespace JSON transcript.
package captions

import "strings"

// Segment is a timed transcript line. EndMs is nil for tag-based formats
// that carry no explicit duration.
type Segment struct {
	StartMs int64
	EndMs   *int64
	Text    string
}

// Text joins segment texts with newlines, skipping empties.
func Text(segments []Segment) string {
	var lines []string
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

func endMs(v int64) *int64 { return &v }
