package captions

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	vttTimingRe = regexp.MustCompile(`^(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}\s+-->\s+(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}`)
	vttTagRe    = regexp.MustCompile(`<[^>]+>`)
)

// ParseVTT decodes a WebVTT payload into segments. Header, NOTE and STYLE
// blocks are skipped; inline tags (<c>, <v Speaker>, timestamps) are
// stripped from cue text.
func ParseVTT(data []byte) ([]Segment, error) {
	var segments []Segment
	var cur *Segment

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			segments = append(segments, *cur)
		}
		cur = nil
	}

	inSkipBlock := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
			inSkipBlock = false
		case strings.HasPrefix(trimmed, "WEBVTT"),
			strings.HasPrefix(trimmed, "NOTE"),
			strings.HasPrefix(trimmed, "STYLE"),
			strings.HasPrefix(trimmed, "REGION"):
			inSkipBlock = true
		case vttTimingRe.MatchString(trimmed):
			flush()
			inSkipBlock = false
			parts := strings.SplitN(trimmed, "-->", 2)
			start := parseVTTTimestamp(strings.TrimSpace(parts[0]))
			endRaw := strings.Fields(strings.TrimSpace(parts[1]))
			cur = &Segment{StartMs: start}
			if len(endRaw) > 0 {
				cur.EndMs = endMs(parseVTTTimestamp(endRaw[0]))
			}
		case cur != nil && !inSkipBlock:
			text := vttTagRe.ReplaceAllString(trimmed, "")
			if text == "" {
				continue
			}
			if cur.Text != "" {
				cur.Text += " "
			}
			cur.Text += text
		}
	}
	flush()
	return segments, nil
}

// parseVTTTimestamp parses [HH:]MM:SS.mmm (comma accepted for SRT-flavored
// files) into milliseconds.
func parseVTTTimestamp(s string) int64 {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")

	var h, m int
	var sec float64
	switch len(parts) {
	case 3:
		h, _ = strconv.Atoi(parts[0])
		m, _ = strconv.Atoi(parts[1])
		sec, _ = strconv.ParseFloat(parts[2], 64)
	case 2:
		m, _ = strconv.Atoi(parts[0])
		sec, _ = strconv.ParseFloat(parts[1], 64)
	default:
		return 0
	}
	return int64(h)*3600_000 + int64(m)*60_000 + int64(sec*1000)
}
