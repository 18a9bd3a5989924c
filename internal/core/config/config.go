package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "mediascribe"
)

// ConfigDir returns the standard config directory.
// Windows: %APPDATA%\mediascribe\
// macOS/Linux: ~/.config/mediascribe/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Preferred caption languages in priority order (e.g., ["en", "de"])
	Languages []string `yaml:"languages,omitempty"`

	// Credentials for transcript providers and transcription backends.
	// Environment variables override file values at load time.
	Credentials Credentials `yaml:"credentials,omitempty"`

	// SegmentSeconds is the chunk length used when media exceeds a
	// transcription backend's upload ceiling (default: 600)
	SegmentSeconds int `yaml:"segment_seconds,omitempty"`
}

// Credentials holds provider secrets and binary paths. All optional;
// which providers are viable follows from which fields are set.
type Credentials struct {
	GroqAPIKey      string `yaml:"groq_api_key,omitempty"`
	OpenAIAPIKey    string `yaml:"openai_api_key,omitempty"`
	FalAPIKey       string `yaml:"fal_api_key,omitempty"`
	ApifyAPIToken   string `yaml:"apify_api_token,omitempty"`
	YtDlpPath       string `yaml:"yt_dlp_path,omitempty"`
	WhisperCppPath  string `yaml:"whisper_cpp_path,omitempty"`
	WhisperCppModel string `yaml:"whisper_cpp_model,omitempty"`
}

// HasTranscription reports whether at least one speech-to-text backend
// could be available. Absence of all keys is the distinguishable
// "missing_transcription_keys" terminal condition, not a generic failure.
func (c Credentials) HasTranscription() bool {
	return c.GroqAPIKey != "" || c.OpenAIAPIKey != "" || c.FalAPIKey != "" || c.WhisperCppPath != ""
}

// Load reads the config file and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.Credentials.applyEnv()
	return &cfg, nil
}

// LoadOrDefault returns the config, or defaults (plus env credentials)
// when no config file exists.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = &Config{}
		cfg.applyDefaults()
		cfg.Credentials.applyEnv()
	}
	return cfg
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, ConfigFileName)
	return os.WriteFile(path, data, 0o600)
}

// Exists reports whether a config file is present.
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (c *Config) applyDefaults() {
	if len(c.Languages) == 0 {
		c.Languages = []string{"en"}
	}
	if c.SegmentSeconds <= 0 {
		c.SegmentSeconds = 600
	}
}

func (c *Credentials) applyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	overlay(&c.GroqAPIKey, "GROQ_API_KEY")
	overlay(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	overlay(&c.FalAPIKey, "FAL_API_KEY")
	overlay(&c.ApifyAPIToken, "APIFY_API_TOKEN")
	overlay(&c.YtDlpPath, "YT_DLP_PATH")
	overlay(&c.WhisperCppPath, "WHISPER_CPP_PATH")
	overlay(&c.WhisperCppModel, "WHISPER_CPP_MODEL")

	c.YtDlpPath = expandPath(c.YtDlpPath)
	c.WhisperCppPath = expandPath(c.WhisperCppPath)
	c.WhisperCppModel = expandPath(c.WhisperCppModel)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}
