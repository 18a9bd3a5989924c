package transcriber

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/steipete/mediascribe/internal/core/fetch"
	"github.com/steipete/mediascribe/internal/core/jsonpath"
	"github.com/steipete/mediascribe/internal/core/run"
	"github.com/steipete/mediascribe/internal/resolver"
)

// hostedUploadLimit is the Whisper API upload ceiling shared by Groq and
// OpenAI.
const hostedUploadLimit = 25 * 1024 * 1024

const groqBaseURL = "https://api.groq.com/openai/v1"

// localBackend runs a whisper.cpp binary. No upload ceiling; the binary
// streams from disk.
type localBackend struct {
	binPath   string
	modelPath string
	runner    run.Runner
}

func newLocalBackend(binPath, modelPath string, runner run.Runner) *localBackend {
	return &localBackend{binPath: binPath, modelPath: modelPath, runner: runner}
}

func (l *localBackend) Name() string { return "whisper.cpp" }

func (l *localBackend) Available() bool {
	if l.binPath == "" || l.modelPath == "" {
		return false
	}
	if info, err := os.Stat(l.binPath); err != nil || info.IsDir() {
		return false
	}
	info, err := os.Stat(l.modelPath)
	return err == nil && !info.IsDir()
}

func (l *localBackend) MaxUploadBytes() int64 { return 0 }

func (l *localBackend) SupportsMedia(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/") || strings.HasPrefix(mediaType, "video/")
}

func (l *localBackend) Transcribe(ctx context.Context, path string) (string, error) {
	res, err := l.runner.Run(ctx, l.binPath,
		"-m", l.modelPath, "-f", path, "-np", "-nt")
	if err != nil {
		return "", fmt.Errorf("whisper.cpp: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("whisper.cpp exited %d: %s", res.ExitCode, resolver.Excerpt(string(res.Stderr), 200))
	}
	text := strings.TrimSpace(string(res.Stdout))
	if text == "" {
		return "", errors.New("whisper.cpp produced no text")
	}
	return text, nil
}

// whisperAPIBackend covers the OpenAI-compatible hosted Whisper APIs.
// Groq serves the same surface under its own base URL.
type whisperAPIBackend struct {
	name   string
	apiKey string
	model  string
	client *openai.Client
}

func newGroqBackend(apiKey string) *whisperAPIBackend {
	b := &whisperAPIBackend{name: "groq", apiKey: apiKey, model: "whisper-large-v3"}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = groqBaseURL
		b.client = openai.NewClientWithConfig(cfg)
	}
	return b
}

func newOpenAIBackend(apiKey string) *whisperAPIBackend {
	b := &whisperAPIBackend{name: "openai", apiKey: apiKey, model: openai.Whisper1}
	if apiKey != "" {
		b.client = openai.NewClient(apiKey)
	}
	return b
}

func (w *whisperAPIBackend) Name() string          { return w.name }
func (w *whisperAPIBackend) Available() bool       { return w.apiKey != "" }
func (w *whisperAPIBackend) MaxUploadBytes() int64 { return hostedUploadLimit }

func (w *whisperAPIBackend) SupportsMedia(mediaType string) bool {
	if strings.HasPrefix(mediaType, "audio/") {
		return true
	}
	switch mediaType {
	case "video/mp4", "video/webm", "video/quicktime":
		return true
	}
	return false
}

func (w *whisperAPIBackend) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("%s transcription: %w", w.name, err)
	}
	return resp.Text, nil
}

// falBackend posts audio to FAL's hosted Whisper as a base64 data URI.
// The encoding overhead keeps its practical ceiling well under the
// OpenAI-compatible APIs.
type falBackend struct {
	apiKey string
	fetch  *fetch.Client

	endpoint string
}

const falEndpoint = "https://fal.run/fal-ai/whisper"

func newFalBackend(apiKey string, client *fetch.Client) *falBackend {
	return &falBackend{apiKey: apiKey, fetch: client, endpoint: falEndpoint}
}

func (f *falBackend) Name() string          { return "fal" }
func (f *falBackend) Available() bool       { return f.apiKey != "" }
func (f *falBackend) MaxUploadBytes() int64 { return 10 * 1024 * 1024 }

func (f *falBackend) SupportsMedia(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/")
}

func (f *falBackend) Transcribe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf(`{"audio_url":"data:%s;base64,%s"}`,
		MediaTypeForPath(path), base64.StdEncoding.EncodeToString(data))

	body, err := f.fetch.Post(ctx, f.endpoint, "application/json", []byte(payload), map[string]string{
		"Authorization": "Key " + f.apiKey,
	})
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && len(se.Body) > 0 {
			return "", fmt.Errorf("fal transcription: status %d: %s", se.Code, resolver.Excerpt(string(se.Body), 200))
		}
		return "", fmt.Errorf("fal transcription: %w", err)
	}

	text := jsonpath.GetString(jsonpath.Parse(body), "text")
	if text == "" {
		return "", errors.New("fal response contained no text")
	}
	return text, nil
}
