package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steipete/mediascribe/internal/core/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mediascribe configuration",
	Long:  "View and modify settings: caption languages, API keys, and tool paths",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()
		path, _ := config.ConfigPath()

		fmt.Println("Current configuration:")
		fmt.Printf("  Languages:       %s\n", strings.Join(cfg.Languages, ", "))
		fmt.Printf("  SegmentSeconds:  %d\n", cfg.SegmentSeconds)
		fmt.Printf("  Config:          %s\n", path)

		fmt.Println("\nCredentials:")
		fmt.Printf("  groq_api_key:      %s\n", redact(cfg.Credentials.GroqAPIKey))
		fmt.Printf("  openai_api_key:    %s\n", redact(cfg.Credentials.OpenAIAPIKey))
		fmt.Printf("  fal_api_key:       %s\n", redact(cfg.Credentials.FalAPIKey))
		fmt.Printf("  apify_api_token:   %s\n", redact(cfg.Credentials.ApifyAPIToken))
		fmt.Printf("  yt_dlp_path:       %s\n", orUnset(cfg.Credentials.YtDlpPath))
		fmt.Printf("  whisper_cpp_path:  %s\n", orUnset(cfg.Credentials.WhisperCppPath))
		fmt.Printf("  whisper_cpp_model: %s\n", orUnset(cfg.Credentials.WhisperCppModel))
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  languages                 Comma-separated caption languages (en,de)
  segment_seconds           Chunk length for oversized transcription input
  groq_api_key              Groq API key
  openai_api_key            OpenAI API key
  fal_api_key               FAL API key
  apify_api_token           Apify API token
  yt_dlp_path               Path to the yt-dlp binary
  whisper_cpp_path          Path to the whisper.cpp binary
  whisper_cpp_model         Path to the whisper.cpp model file

Examples:
  mediascribe config set languages en,de
  mediascribe config set groq_api_key YOUR_KEY`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Set %s\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "languages":
		var langs []string
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		if len(langs) == 0 {
			return fmt.Errorf("languages needs at least one code")
		}
		cfg.Languages = langs
	case "segment_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("segment_seconds must be a positive integer")
		}
		cfg.SegmentSeconds = n
	case "groq_api_key":
		cfg.Credentials.GroqAPIKey = value
	case "openai_api_key":
		cfg.Credentials.OpenAIAPIKey = value
	case "fal_api_key":
		cfg.Credentials.FalAPIKey = value
	case "apify_api_token":
		cfg.Credentials.ApifyAPIToken = value
	case "yt_dlp_path":
		cfg.Credentials.YtDlpPath = value
	case "whisper_cpp_path":
		cfg.Credentials.WhisperCppPath = value
	case "whisper_cpp_model":
		cfg.Credentials.WhisperCppModel = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "languages":
		return strings.Join(cfg.Languages, ","), nil
	case "segment_seconds":
		return strconv.Itoa(cfg.SegmentSeconds), nil
	case "groq_api_key":
		return cfg.Credentials.GroqAPIKey, nil
	case "openai_api_key":
		return cfg.Credentials.OpenAIAPIKey, nil
	case "fal_api_key":
		return cfg.Credentials.FalAPIKey, nil
	case "apify_api_token":
		return cfg.Credentials.ApifyAPIToken, nil
	case "yt_dlp_path":
		return cfg.Credentials.YtDlpPath, nil
	case "whisper_cpp_path":
		return cfg.Credentials.WhisperCppPath, nil
	case "whisper_cpp_model":
		return cfg.Credentials.WhisperCppModel, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func redact(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "..." + s[len(s)-3:]
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}
