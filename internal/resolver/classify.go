package resolver

import (
	"net/url"
	"strings"
)

// Source is the routing decision for an input reference.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourcePodcast Source = "podcast"
	SourceMedia   Source = "media" // generic remote or local audio/video file
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

var podcastHosts = map[string]bool{
	"podcasts.apple.com": true,
	"itunes.apple.com":   true,
	"open.spotify.com":   true,
	"overcast.fm":        true,
	"pca.st":             true,
	"pocketcasts.com":    true,
	"castro.fm":          true,
	"castbox.fm":         true,
}

// Classify routes a URL or local path to a resolver. Anything that is not
// recognizably a YouTube watch page or a podcast episode page is treated
// as a bare media file for direct transcription.
func Classify(raw string) Source {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return SourceMedia
	}

	host := strings.ToLower(u.Hostname())
	if youtubeHosts[host] {
		return SourceYouTube
	}
	if podcastHosts[host] {
		return SourcePodcast
	}
	path := strings.ToLower(u.Path)
	if strings.Contains(path, "/podcast") || strings.Contains(path, "/episode") {
		return SourcePodcast
	}
	if strings.HasSuffix(path, ".rss") || strings.HasSuffix(path, ".xml") {
		return SourcePodcast
	}
	return SourceMedia
}
