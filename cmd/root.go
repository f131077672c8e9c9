// Package cmd contains the clara command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/claralabs/clara/internal/log"
)

var (
	flagVerbose bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "clara",
	Short: "Clara - conversational assistant server",
	Long: `Clara is a conversational assistant backend. It resolves the caller's
session, tracks the login/registration flow, classifies each message,
and streams tool-informed answers from the completion service.

Run "clara serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "log in JSON format")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: flagJSONLog})
	slog.SetDefault(logger)
	return logger
}
