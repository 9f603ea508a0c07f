package main

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/companion/internal/config"
)

func newRootCmd() *cobra.Command {
	var envFile string

	serve := newServeCmd()
	root := &cobra.Command{
		Use:   "companion",
		Short: "Conversational health and translation assistant",
		Long: `Companion answers questions, translates text and voice, and keeps a
small health profile, task list and stress history per user.

Available subcommands:
  serve       Run the Telegram bot, web chat and operational endpoints (default)
  console     Chat with the bot on stdin/stdout`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if err := godotenv.Load(envFile); err != nil {
				slog.Info("No .env file found, using environment variables", "path", envFile)
			}
		},
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(serve)
	root.AddCommand(newConsoleCmd())
	return root
}

// loadConfig loads configuration for p and installs the JSON logger.
func loadConfig(p config.Purpose, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(p)
	if err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			slog.Error("Invalid configuration", "key", cerr.Key, "reason", cerr.Reason)
		} else {
			slog.Error("Failed to load configuration", "error", err)
		}
		return nil, nil, err
	}

	if logOut == nil {
		logOut = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
