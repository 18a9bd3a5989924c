package captions

import (
	"encoding/json"
	"fmt"
)

// Podcast-namespace JSON transcript, as linked from
// <podcast:transcript type="application/json">:
// {"segments":[{"startTime":1.2,"endTime":3.4,"body":"..."}]}
type podcastTranscript struct {
	Segments []struct {
		StartTime float64 `json:"startTime"`
		EndTime   float64 `json:"endTime"`
		Body      string  `json:"body"`
	} `json:"segments"`
}

// ParsePodcastJSON decodes a podcast-namespace JSON transcript.
func ParsePodcastJSON(data []byte) ([]Segment, error) {
	var payload podcastTranscript
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
	}

	var segments []Segment
	for _, ps := range payload.Segments {
		if ps.Body == "" {
			continue
		}
		s := Segment{StartMs: int64(ps.StartTime * 1000), Text: ps.Body}
		if ps.EndTime > 0 {
			s.EndMs = endMs(int64(ps.EndTime * 1000))
		}
		segments = append(segments, s)
	}
	return segments, nil
}
