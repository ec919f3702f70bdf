package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/resscene/internal/config"
	"github.com/aretw0/resscene/internal/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "resscene",
	Short:         "ResScene snapshots and restores home-automation scenes",
	Long:          `ResScene captures the live state of entities into named scenes, keeps them across restarts and restores them through the host's service calls.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file loaded before the environment")
	rootCmd.PersistentFlags().String("store", "", "Override the store backend (memory, file, redis, sqlite)")
	rootCmd.PersistentFlags().String("store-path", "", "Override the store path")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Override the log format (text, json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

// loadConfig loads the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	dotenv, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, dotenv)
	if err != nil {
		return config.Config{}, nil, err
	}

	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("store-path"); v != "" {
		cfg.Store.Path = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level, format), nil
}
