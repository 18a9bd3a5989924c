// Package feed parses podcast RSS/Atom feeds: items with enclosures,
// itunes duration tags, and podcast-namespace transcript links
// (https://github.com/Podcastindex-org/podcast-namespace).
package feed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Feed is a parsed podcast feed.
type Feed struct {
	Title string
	Items []Item
}

// Item is one episode entry.
type Item struct {
	Title       string
	GUID        string
	Enclosure   Enclosure
	Duration    int // seconds, 0 when absent or invalid
	Transcripts []Transcript
}

// Enclosure points at the episode's downloadable media file.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Transcript is a podcast:transcript link on an item.
type Transcript struct {
	URL  string
	Type string
}

type rssDoc struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// Atom feeds carry entries at the top level.
	Title   string    `xml:"title"`
	Entries []rssItem `xml:"entry"`
}

type rssItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Type   string `xml:"type,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
	// itunes:duration; encoding/xml matches by local name.
	Duration    []string `xml:"duration"`
	Transcripts []struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"transcript"`
}

// Parse decodes an RSS 2.0 or Atom feed.
func Parse(data []byte) (*Feed, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	f := &Feed{Title: strings.TrimSpace(doc.Channel.Title)}
	if f.Title == "" {
		f.Title = strings.TrimSpace(doc.Title)
	}

	raw := doc.Channel.Items
	if len(raw) == 0 {
		raw = doc.Entries
	}
	for _, ri := range raw {
		item := Item{
			Title: strings.TrimSpace(ri.Title),
			GUID:  strings.TrimSpace(ri.GUID),
			Enclosure: Enclosure{
				URL:    DecodeEntities(ri.Enclosure.URL),
				Type:   ri.Enclosure.Type,
				Length: ri.Enclosure.Length,
			},
		}
		// Atom: <link rel="enclosure" href=...>
		if item.Enclosure.URL == "" {
			for _, l := range ri.Links {
				if l.Rel == "enclosure" && l.Href != "" {
					item.Enclosure = Enclosure{URL: DecodeEntities(l.Href), Type: l.Type}
					break
				}
			}
		}
		for _, d := range ri.Duration {
			if secs, ok := ParseDuration(d); ok {
				item.Duration = secs
				break
			}
		}
		for _, tr := range ri.Transcripts {
			if tr.URL != "" {
				item.Transcripts = append(item.Transcripts, Transcript{
					URL:  DecodeEntities(tr.URL),
					Type: tr.Type,
				})
			}
		}
		f.Items = append(f.Items, item)
	}
	return f, nil
}

// FindItem returns the item whose normalized title matches exactly,
// or nil.
func (f *Feed) FindItem(title string) *Item {
	want := NormalizeTitle(title)
	if want == "" {
		return nil
	}
	for i := range f.Items {
		if NormalizeTitle(f.Items[i].Title) == want {
			return &f.Items[i]
		}
	}
	return nil
}

// BestTranscript picks the preferred transcript link: JSON-typed first
// (cheapest to consume), then VTT, then the first listed.
func (i *Item) BestTranscript() *Transcript {
	if len(i.Transcripts) == 0 {
		return nil
	}
	for idx := range i.Transcripts {
		if strings.Contains(strings.ToLower(i.Transcripts[idx].Type), "json") {
			return &i.Transcripts[idx]
		}
	}
	for idx := range i.Transcripts {
		t := strings.ToLower(i.Transcripts[idx].Type)
		if strings.Contains(t, "vtt") {
			return &i.Transcripts[idx]
		}
	}
	return &i.Transcripts[0]
}

// ParseDuration parses an itunes duration string: plain seconds, MM:SS,
// or HH:MM:SS. Invalid or non-positive values are reported as absent,
// never as zero.
func ParseDuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// DecodeEntities decodes XML entities that survive into URL strings from
// double-encoded feeds or regex-scraped markup, so `...?p=1&amp;t=x` is
// fetched as `...?p=1&t=x`.
func DecodeEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&#38;", "&",
		"&#038;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return r.Replace(s)
}
