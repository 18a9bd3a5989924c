// Package cli wires the cobra command surface: the root command resolves
// one URL or media file to a transcript.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steipete/mediascribe/internal/core/config"
	"github.com/steipete/mediascribe/internal/core/version"
	"github.com/steipete/mediascribe/internal/pipeline"
	"github.com/steipete/mediascribe/internal/resolver"
	"github.com/steipete/mediascribe/internal/transcriber"
)

var (
	modeFlag   string
	timestamps bool
	htmlFile   string
	output     string
	asJSON     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "mediascribe <url|file>",
	Short:   "Fetch transcripts for YouTube videos, podcast episodes, and media files",
	Version: version.Version,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runResolve(args[0])
	},
}

func init() {
	rootCmd.Flags().StringVar(&modeFlag, "mode", "auto", "YouTube acquisition mode (auto, web, apify, yt-dlp, no-auto)")
	rootCmd.Flags().BoolVar(&timestamps, "timestamps", false, "keep per-segment timing in the result")
	rootCmd.Flags().StringVar(&htmlFile, "html", "", "pre-fetched page snapshot to resolve from")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "write the transcript to a file instead of stdout")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

func runResolve(input string) error {
	mode, err := resolver.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	if asJSON && output != "" {
		return fmt.Errorf("--json writes to stdout; drop -o")
	}

	var html string
	if htmlFile != "" {
		data, err := os.ReadFile(htmlFile)
		if err != nil {
			return fmt.Errorf("html snapshot: %w", err)
		}
		html = string(data)
	}

	logger := log.New(os.Stderr)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := config.LoadOrDefault()
	p := pipeline.New(cfg, logger).WithCache(pipeline.NewMemCache())
	p.Engine().Progress = func(pr transcriber.Progress) {
		fmt.Fprintf(os.Stderr, "  %s part %d/%d (%.0f/%.0fs)\n",
			color.CyanString("transcribing"), pr.PartIndex+1, pr.Parts,
			pr.ProcessedDurationSeconds, pr.TotalDurationSeconds)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, input, pipeline.Options{
		Mode:       mode,
		Timestamps: timestamps,
		HTML:       html,
	})
	if err != nil {
		return err
	}

	for _, note := range res.Notes {
		fmt.Fprintln(os.Stderr, color.YellowString("  note: %s", note))
	}

	if asJSON {
		return emitJSON(res)
	}
	if res.Text == "" {
		reason, _ := res.Metadata["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		return fmt.Errorf("no transcript available (%s)", reason)
	}

	if output != "" {
		if err := os.WriteFile(output, []byte(res.Text+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, color.GreenString("  wrote %s (source: %s)", output, res.Source))
		return nil
	}

	fmt.Fprintln(os.Stderr, color.GreenString("  source: %s", res.Source))
	fmt.Println(res.Text)
	return nil
}

func emitJSON(res *resolver.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	payload := map[string]any{
		"text":     res.Text,
		"source":   res.Source,
		"metadata": res.Metadata,
		"notes":    res.Notes,
	}
	if timestamps {
		payload["segments"] = res.Segments
	}
	return enc.Encode(payload)
}
