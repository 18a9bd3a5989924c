package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steipete/mediascribe/internal/core/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the mediascribe config file",
	Long: `Write a config file with defaults and any credentials found in the
environment. Edit it afterwards or use 'mediascribe config set'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() && !initForce {
			path, _ := config.ConfigPath()
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.LoadOrDefault()
		if err := config.Save(cfg); err != nil {
			return err
		}

		path, _ := config.ConfigPath()
		fmt.Printf("Saved %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
