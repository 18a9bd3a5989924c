package captions

import (
	"encoding/xml"
	"fmt"
	"html"
	"strings"
)

// Legacy timedtext shape: <transcript><text start="1.2" dur="3.4">..., with
// start/dur in float seconds.
type transcriptXML struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

// srv3 timedtext shape: <timedtext><body><p t="1200" d="3400"><s>..., with
// t/d in milliseconds and text split over <s> runs.
type timedtextXML struct {
	XMLName xml.Name `xml:"timedtext"`
	Paras   []struct {
		T    int64 `xml:"t,attr"`
		D    int64 `xml:"d,attr"`
		Segs []struct {
			Text string `xml:",chardata"`
		} `xml:"s"`
		Text string `xml:",chardata"`
	} `xml:"body>p"`
}

// ParseTimedText decodes either timedtext XML variant into segments.
// HTML entities in caption text are unescaped.
func ParseTimedText(data []byte) ([]Segment, error) {
	var legacy transcriptXML
	if err := xml.Unmarshal(data, &legacy); err == nil && len(legacy.Texts) > 0 {
		var segments []Segment
		for _, t := range legacy.Texts {
			text := strings.TrimSpace(html.UnescapeString(t.Text))
			if text == "" {
				continue
			}
			startMs := int64(t.Start * 1000)
			s := Segment{StartMs: startMs, Text: text}
			if t.Dur > 0 {
				s.EndMs = endMs(startMs + int64(t.Dur*1000))
			}
			segments = append(segments, s)
		}
		return segments, nil
	}

	var srv3 timedtextXML
	if err := xml.Unmarshal(data, &srv3); err != nil {
		return nil, fmt.Errorf("failed to parse timedtext XML: %w", err)
	}

	var segments []Segment
	for _, p := range srv3.Paras {
		var sb strings.Builder
		for _, seg := range p.Segs {
			sb.WriteString(seg.Text)
		}
		if sb.Len() == 0 {
			sb.WriteString(p.Text)
		}
		text := strings.TrimSpace(html.UnescapeString(sb.String()))
		if text == "" {
			continue
		}
		s := Segment{StartMs: p.T, Text: text}
		if p.D > 0 {
			s.EndMs = endMs(p.T + p.D)
		}
		segments = append(segments, s)
	}
	return segments, nil
}
