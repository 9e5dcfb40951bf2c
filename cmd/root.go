package cmd

import (
	"fmt"
	"os"

	"asset-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "asset-sync",
	Short: "Asset Hierarchy Sync Service",
	Long: `Asset Sync keeps the asset database of a production pipeline aligned with
the project tree of the project-management system.
It runs one-shot synchronizations from the CLI or serves them over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configDir holds the .env and asset-sync.yaml files read by every command.
var configDir string

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding .env and asset-sync.yaml")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with the development config gives readable timestamps for CLI errors
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
