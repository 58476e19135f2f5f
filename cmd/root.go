package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "engagement-cli",
	Short: "Social media engagement metadata extraction",
	Long: `Reads public YouTube, TikTok and Facebook video pages and extracts title,
author, engagement counts and upload date.

Settings come from config.yaml, a .env file and ENGAGEMENT_* environment
variables. store.driver picks the record store (sqlite or postgres),
browser.mode picks how pages are loaded (chrome or static) and
vision.provider picks the screenshot reader (anthropic or ollama) used to
cross-check scraped counts when vision.enabled is set.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		zap.L().Debug("config loaded",
			zap.String("store_driver", cfg.Store.Driver),
			zap.String("browser_mode", cfg.Browser.Mode),
			zap.Bool("vision_enabled", cfg.Vision.Enabled),
			zap.String("vision_provider", cfg.Vision.Provider),
		)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
