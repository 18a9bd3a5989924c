package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/steipete/mediascribe/internal/captions"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/resolver"
)

// Innertube endpoints and client identities. The WEB client drives /next
// and /get_transcript; the ANDROID client drives /player, which works
// from IPs where the web player demands a login.
const (
	innertubeBase = "https://www.youtube.com/youtubei/v1"

	webVersion     = "2.20250222.10.00"
	androidVersion = "20.10.38"
	androidUA      = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
)

var (
	apiKeyRe  = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	visitorRe = regexp.MustCompile(`"visitorData":"([^"]+)"`)
	// The params value in the /next response is URL-encoded; /get_transcript
	// wants the decoded base64 form.
	transcriptParamsRe = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)
	lengthSecondsRe    = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
)

// bootstrap is the page-embedded config a watch page snapshot yields.
type bootstrap struct {
	apiKey      string
	visitorData string
}

func bootstrapFromHTML(html string) bootstrap {
	var b bootstrap
	if m := apiKeyRe.FindStringSubmatch(html); len(m) == 2 {
		b.apiKey = m[1]
	}
	if m := visitorRe.FindStringSubmatch(html); len(m) == 2 {
		b.visitorData = m[1]
	}
	return b
}

// generateVisitorData makes a random visitor id for requests issued
// without a page snapshot.
func generateVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return string(b)
}

func (s *session) webContext() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"clientName":    "WEB",
			"clientVersion": webVersion,
			"visitorData":   s.boot.visitorData,
			"hl":            "en",
			"gl":            "US",
		},
		"user":    map[string]any{"enableSafetyMode": false},
		"request": map[string]any{"useSsl": true},
	}
}

// postInnertube POSTs a JSON payload to an Innertube endpoint with WEB
// client headers.
func (s *session) postInnertube(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	u := endpoint + "?prettyPrint=false"
	if s.boot.apiKey != "" {
		u = endpoint + "?key=" + url.QueryEscape(s.boot.apiKey) + "&prettyPrint=false"
	}

	return s.req.Fetch.Post(ctx, u, "application/json", body, map[string]string{
		"Accept":                   "*/*",
		"X-Youtube-Client-Name":    "1",
		"X-Youtube-Client-Version": webVersion,
		"X-Goog-Visitor-Id":        s.boot.visitorData,
		"Origin":                   "https://www.youtube.com",
		"Referer":                  "https://www.youtube.com/",
	})
}

// viaGetTranscript resolves through the engagement panel: POST /next for
// the transcript continuation token, then POST /get_transcript for the
// segment list.
func (s *session) viaGetTranscript(ctx context.Context) (*resolver.Result, error) {
	nextData, err := s.postInnertube(ctx, s.innertubeBase+"/next", map[string]any{
		"videoId": s.videoID,
		"context": s.webContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("next: %w", err)
	}

	m := transcriptParamsRe.FindSubmatch(nextData)
	if len(m) < 2 {
		return nil, errors.New("no transcript panel on watch page")
	}
	params := string(m[1])
	if decoded, err := url.QueryUnescape(params); err == nil {
		params = decoded
	}

	data, err := s.postInnertube(ctx, s.innertubeBase+"/get_transcript", map[string]any{
		"params":  params,
		"context": s.webContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("get_transcript: %w", err)
	}

	segs := parseGetTranscript(data)
	if len(segs) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return &resolver.Result{Text: captions.Text(segs), Segments: segs}, nil
}

// parseGetTranscript walks the /get_transcript response. The payload is a
// deeply nested renderer tree; missing branches read as absent rather
// than failing the whole parse.
func parseGetTranscript(data []byte) []captions.Segment {
	root := jsonpath.Parse(data)

	var segs []captions.Segment
	for _, action := range jsonpath.GetSlice(root, "actions") {
		list := jsonpath.GetSlice(action,
			"updateEngagementPanelAction", "content",
			"transcriptRenderer", "content",
			"transcriptSearchPanelRenderer", "body",
			"transcriptSegmentListRenderer", "initialSegments")
		for _, item := range list {
			r := jsonpath.GetMap(item, "transcriptSegmentRenderer")
			if r == nil {
				continue
			}
			var text strings.Builder
			for _, run := range jsonpath.GetSlice(r, "snippet", "runs") {
				t := jsonpath.GetString(run, "text")
				if t == "" {
					continue
				}
				if text.Len() > 0 {
					text.WriteByte(' ')
				}
				text.WriteString(t)
			}
			if text.Len() == 0 {
				continue
			}
			seg := captions.Segment{Text: text.String()}
			if ms, err := strconv.ParseInt(jsonpath.GetString(r, "startMs"), 10, 64); err == nil {
				seg.StartMs = ms
			}
			if ms, err := strconv.ParseInt(jsonpath.GetString(r, "endMs"), 10, 64); err == nil {
				end := ms
				seg.EndMs = &end
			}
			segs = append(segs, seg)
		}
	}
	return segs
}

// playerResponse fetches /player with the ANDROID client and caches the
// untyped tree for both caption tracks and duration lookups.
func (s *session) playerResponse(ctx context.Context) (any, error) {
	if s.player != nil {
		return s.player, nil
	}

	body, err := json.Marshal(map[string]any{
		"videoId": s.videoID,
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        "ANDROID",
				"clientVersion":     androidVersion,
				"androidSdkVersion": 30,
				"hl":                "en",
				"gl":                "US",
			},
		},
		"racyCheckOk":    true,
		"contentCheckOk": true,
	})
	if err != nil {
		return nil, err
	}

	data, err := s.req.Fetch.Post(ctx, s.innertubeBase+"/player?prettyPrint=false", "application/json", body, map[string]string{
		"User-Agent":               androidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": androidVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}

	root := jsonpath.Parse(data)
	if root == nil {
		return nil, errors.New("player response is not JSON")
	}
	s.player = root
	return root, nil
}
