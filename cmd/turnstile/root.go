package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/turnstile/internal/logging"
	"github.com/aretw0/turnstile/pkg/config"
)

var (
	cfg    *config.File
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Turnstile runs conversational turns through a plugin pipeline",
	Long: `Turnstile is an extensible engine for conversational turns.
Inbound requests are claimed by a platform, normalized, routed to dialogue logic
and rendered back to the caller, with plugins hooking into every stage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.Logging.Level = level
		}
		cfg = loaded
		logger = logging.NewWithSentry(logging.ParseLevel(cfg.Logging.Level), logging.SentryConfig{
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "turnstile.yaml", "Configuration file (optional)")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
}
