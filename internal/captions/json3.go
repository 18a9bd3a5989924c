package captions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// json3 is YouTube's JSON caption format (fmt=json3): a flat event list
// where each event carries a start offset, an optional duration, and a
// list of utf8 runs.
type json3Payload struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 decodes a json3 caption payload into timed segments.
// Events with no visible text (music cues, window styling) are dropped.
func ParseJSON3(data []byte) ([]Segment, error) {
	var payload json3Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse json3 captions: %w", err)
	}

	var segments []Segment
	for _, ev := range payload.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
		if text == "" {
			continue
		}

		s := Segment{StartMs: ev.TStartMs, Text: text}
		if ev.DDurationMs > 0 {
			s.EndMs = endMs(ev.TStartMs + ev.DDurationMs)
		}
		segments = append(segments, s)
	}
	return segments, nil
}
