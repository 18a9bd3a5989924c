package podcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/resolver"
)

const feedWithTranscript = `<?xml version="1.0"?>
<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Test Show</title>
    <item>
      <title>Deep Dive</title>
      <enclosure url="BASE/audio.mp3" type="audio/mpeg"/>
      <itunes:duration>40:00</itunes:duration>
      <podcast:transcript url="BASE/t.json" type="application/json"/>
    </item>
  </channel>
</rss>`

const feedNoTranscript = `<?xml version="1.0"?>
<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Test Show</title>
    <item>
      <title>Deep Dive</title>
      <enclosure url="BASE/audio.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func newRequest(url string, creds config.Credentials) *resolver.Request {
	return &resolver.Request{
		URL:         url,
		Languages:   []string{"en"},
		Fetch:       fetch.NewClient(),
		Credentials: creds,
	}
}

func TestFeedTranscriptSkipsWhisper(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Write([]byte(strings.ReplaceAll(feedWithTranscript, "BASE", srvURL)))
		case "/t.json":
			w.Write([]byte(`{"segments":[{"startTime":0,"endTime":3.5,"body":"Welcome to the deep dive."}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	whisperCalled := false
	r := &Resolver{Transcribe: func(ctx context.Context, path string) (string, []string, error) {
		whisperCalled = true
		return "whisper output", nil, nil
	}}

	req := newRequest(srv.URL+"/feed.xml", config.Credentials{GroqAPIKey: "gk"})
	res := r.Resolve(context.Background(), req)

	assert.Equal(t, "Welcome to the deep dive.", res.Text)
	assert.Equal(t, ProviderFeedTranscript, res.Source)
	assert.False(t, whisperCalled, "native feed transcript must not invoke Whisper")
	assert.Contains(t, strings.Join(res.Notes, "\n"), "skipped Whisper")
	assert.Equal(t, 2400, res.Metadata["durationSeconds"])
}

func TestPreviewClipFallsBackToItunes(t *testing.T) {
	longText := strings.Repeat("plenty of transcribed words here ", 40)
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/embed/episode/abc123":
			w.Write([]byte(`<script id="__NEXT_DATA__" type="application/json">{
				"props":{"pageProps":{"state":{"data":{"entity":{
					"name":"Long Episode","subtitle":"Big Show","duration":2400000,
					"audioPreview":{"url":"` + srvURL + `/preview.mp3"}
				}}}}}}</script>`))
		case r.URL.Path == "/preview.mp3":
			w.Write([]byte("PREVIEW"))
		case r.URL.Path == "/full.mp3":
			w.Write([]byte("FULL"))
		case r.URL.Path == "/search":
			w.Write([]byte(`{"resultCount":1,"results":[{
				"wrapperType":"podcastEpisode","trackName":"Long Episode",
				"episodeUrl":"` + srvURL + `/full.mp3"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	r := &Resolver{
		spotifyBase: srv.URL,
		itunesAPI:   srv.URL,
		Transcribe: func(ctx context.Context, path string) (string, []string, error) {
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			if strings.Contains(string(data), "PREVIEW") {
				return strings.Repeat("x", 150), nil, nil
			}
			return longText, nil, nil
		},
	}

	req := newRequest("https://open.spotify.com/episode/abc123", config.Credentials{GroqAPIKey: "gk"})
	res := r.Resolve(context.Background(), req)

	assert.Equal(t, longText, res.Text)
	assert.Equal(t, ProviderItunesSearch, res.Source)
	assert.Contains(t, strings.Join(res.Notes, "\n"), "preview clip")

	providers, ok := res.Metadata["providers"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{ProviderSpotifyEmbed, ProviderItunesSearch}, providers)
}

func TestMissingTranscriptionKeys(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Write([]byte(strings.ReplaceAll(feedNoTranscript, "BASE", srvURL)))
		default:
			w.Write([]byte("audio"))
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	r := &Resolver{}
	req := newRequest(srv.URL+"/feed.xml", config.Credentials{
		YtDlpPath: filepath.Join(t.TempDir(), "missing"),
	})
	res := r.Resolve(context.Background(), req)

	assert.Empty(t, res.Text)
	assert.Equal(t, resolver.ReasonMissingTranscriptionKeys, res.Metadata["reason"],
		"audio was found, so the failure must name the missing keys")
}

func TestNoEnclosureAndNoYtDlp(t *testing.T) {
	r := &Resolver{}
	req := newRequest("https://example.com/shows/some-episode", config.Credentials{
		YtDlpPath: filepath.Join(t.TempDir(), "missing"),
	})
	res := r.Resolve(context.Background(), req)

	assert.Empty(t, res.Text)
	assert.Equal(t, resolver.ReasonNoEnclosureAndNoYtDlp, res.Metadata["reason"])
}

func TestIsPreviewClip(t *testing.T) {
	cases := []struct {
		chars    int
		duration int
		want     bool
	}{
		{150, 2400, true},
		{150, 0, true},
		{500, 2400, true},
		{500, 300, false},
		{900, 2400, false},
		{250, 599, false},
	}
	for _, tc := range cases {
		got := isPreviewClip(strings.Repeat("x", tc.chars), tc.duration)
		assert.Equal(t, tc.want, got, "%d chars, %ds", tc.chars, tc.duration)
	}
}

func TestAppleIDs(t *testing.T) {
	pid, eid, ok := appleIDs("https://podcasts.apple.com/us/podcast/hardcore-history/id173001861?i=1000682587885")
	require.True(t, ok)
	assert.Equal(t, "173001861", pid)
	assert.Equal(t, "1000682587885", eid)

	pid, eid, ok = appleIDs("https://podcasts.apple.com/podcast/id173001861")
	require.True(t, ok)
	assert.Equal(t, "173001861", pid)
	assert.Empty(t, eid)

	_, _, ok = appleIDs("https://example.com/id123")
	assert.False(t, ok)
}

func TestSpotifyEpisodeID(t *testing.T) {
	id, ok := spotifyEpisodeID("https://open.spotify.com/episode/4rOoJ6Egrf8K2IrywzwOMk?si=x")
	require.True(t, ok)
	assert.Equal(t, "4rOoJ6Egrf8K2IrywzwOMk", id)

	_, ok = spotifyEpisodeID("https://open.spotify.com/show/abc")
	assert.False(t, ok)
}

func TestPageHelpers(t *testing.T) {
	html := `<html><head>
		<title>Ep 9 | Some Site</title>
		<meta property="og:title" content="Episode Nine"/>
		<meta property="og:audio" content="https://cdn.example.com/preview.mp3"/>
		<link rel="alternate" type="application/rss+xml" href="https://example.com/feed.xml?a=1&amp;b=2"/>
		<script>{"audioUrl":"https:\/\/cdn.example.com\/full.mp3"}</script>
	</head></html>`

	assert.Equal(t, "Episode Nine", pageTitle(html))
	assert.Equal(t, "https://example.com/feed.xml?a=1&b=2", pageFeedURL(html))
	assert.Equal(t, "https://cdn.example.com/full.mp3", pageAudioURL(html))
	assert.Equal(t, "https://cdn.example.com/preview.mp3", pageOgAudioURL(html))

	assert.Equal(t, "Ep 9", pageTitle(`<title>Ep 9 | Some Site</title>`),
		"site chrome stripped from document title")
}

func TestParseSpotifyEmbedMissing(t *testing.T) {
	assert.Nil(t, parseSpotifyEmbed("<html>captcha</html>"))
	assert.Nil(t, parseSpotifyEmbed(`<script id="__NEXT_DATA__" type="application/json">{"props":{}}</script>`))
}
