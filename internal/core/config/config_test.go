package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty path", input: "", expected: ""},
		{name: "Absolute path", input: "/usr/local/bin/yt-dlp", expected: "/usr/local/bin/yt-dlp"},
		{name: "Home only", input: "~", expected: home},
		{name: "Home with slash", input: "~/models/ggml-base.bin", expected: filepath.Join(home, "models/ggml-base.bin")},
		{name: "Tilde in middle", input: "/path/~/x", expected: "/path/~/x"},
		{name: "Tilde user", input: "~user", expected: "~user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandPath(tt.input))
		})
	}
}

func TestCredentialsEnvOverride(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("YT_DLP_PATH", "/opt/yt-dlp")

	c := Credentials{GroqAPIKey: "from-file", OpenAIAPIKey: "sk-file"}
	c.applyEnv()

	assert.Equal(t, "gsk_test", c.GroqAPIKey, "env wins over file")
	assert.Equal(t, "sk-file", c.OpenAIAPIKey, "file value kept when env unset")
	assert.Equal(t, "/opt/yt-dlp", c.YtDlpPath)
}

func TestHasTranscription(t *testing.T) {
	assert.False(t, Credentials{}.HasTranscription())
	assert.False(t, Credentials{ApifyAPIToken: "t", YtDlpPath: "/x"}.HasTranscription())
	assert.True(t, Credentials{GroqAPIKey: "k"}.HasTranscription())
	assert.True(t, Credentials{WhisperCppPath: "/usr/bin/whisper"}.HasTranscription())
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	assert.Equal(t, []string{"en"}, cfg.Languages)
	assert.Equal(t, 600, cfg.SegmentSeconds)
}
