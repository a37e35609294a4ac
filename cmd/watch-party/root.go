package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/watch-party/config"
	"github.com/cwrk-planet/watch-party/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "watch-party",
	Short:         "Watch-party relay: shared playback and chat over WebSocket",
	Long:          `HTTP + WebSocket relay with room storage. Commands: serve, migrate, seed, client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if configPath != "" {
			if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
				return err
			}
		}
		c, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c

		lc := logger.Config{
			Service:   cfg.Logging.Service,
			Version:   cfg.Logging.Version,
			Env:       logger.Env(cfg.Logging.Env),
			Backend:   logger.Backend(cfg.Logging.Backend),
			Level:     logger.ParseLevel(cfg.Logging.Level),
			Debug:     cfg.Logging.Debug,
			AddSource: cfg.Logging.AddSource,
		}
		if cmd.Name() == "client" {
			// stdout belongs to the interactive session
			lc.Output = os.Stderr
		}
		logger.Init(lc)
		return nil
	},
	RunE: runServe, // default: same as "watch-party serve"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clientCmd)
}
