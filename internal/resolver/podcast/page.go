package podcast

import (
	"regexp"
	"strings"

	"github.com/steipete/mediascribe/internal/feed"
)

// Episode-page scraping: og/meta tags, alternate-feed links and embedded
// audio URLs. All helpers are tolerant; a miss returns "".

var (
	ogRe = map[string]*regexp.Regexp{
		"og:title": regexp.MustCompile(`<meta[^>]+property="og:title"[^>]+content="([^"]+)"`),
		"og:audio": regexp.MustCompile(`<meta[^>]+property="og:audio"[^>]+content="([^"]+)"`),
	}
	titleTagRe = regexp.MustCompile(`<title[^>]*>([^<]+)</title>`)
	feedLinkRe = regexp.MustCompile(`<link[^>]+type="application/(?:rss|atom)\+xml"[^>]+href="([^"]+)"`)
	// Direct media file links and common player-config JSON keys.
	audioURLRe  = regexp.MustCompile(`https?://[^\s"'<>\\]+\.(?:mp3|m4a|aac|ogg|wav)(?:\?[^\s"'<>\\]*)?`)
	audioJSONRe = regexp.MustCompile(`"(?:audioUrl|audio_url|streamUrl|stream_url|mediaUrl|media_url)"\s*:\s*"([^"]+)"`)
)

func metaContent(html, property string) string {
	re, ok := ogRe[property]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(html); len(m) == 2 {
		return feed.DecodeEntities(m[1])
	}
	return ""
}

// pageTitle prefers og:title over the document title, which carries site
// chrome like " | Apple Podcasts".
func pageTitle(html string) string {
	if t := metaContent(html, "og:title"); t != "" {
		return t
	}
	if m := titleTagRe.FindStringSubmatch(html); len(m) == 2 {
		title := strings.TrimSpace(feed.DecodeEntities(m[1]))
		for _, sep := range []string{" | ", " – ", " - "} {
			if i := strings.Index(title, sep); i > 0 {
				title = title[:i]
				break
			}
		}
		return title
	}
	return ""
}

// pageFeedURL finds an alternate RSS/Atom link on the episode page.
func pageFeedURL(html string) string {
	if m := feedLinkRe.FindStringSubmatch(html); len(m) == 2 {
		return feed.DecodeEntities(m[1])
	}
	return ""
}

// pageAudioURL finds an embedded direct audio or stream URL.
func pageAudioURL(html string) string {
	if m := audioJSONRe.FindStringSubmatch(html); len(m) == 2 {
		u := strings.ReplaceAll(m[1], `\/`, "/")
		return feed.DecodeEntities(u)
	}
	if m := audioURLRe.FindString(html); m != "" {
		return feed.DecodeEntities(m)
	}
	return ""
}

// pageOgAudioURL is the last-resort og:audio meta tag. Its content is
// frequently a preview clip rather than the full episode.
func pageOgAudioURL(html string) string {
	return metaContent(html, "og:audio")
}
