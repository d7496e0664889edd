// Package main is the entry point for the recordsync daemon.
package main

import (
	"log/slog"
	"os"

	"github.com/stacklok/recordsync/cmd/recordsync/app"
	"github.com/stacklok/recordsync/internal/config"
	"github.com/stacklok/recordsync/internal/logging"
)

// getLogLevel reads RECORDSYNC_LOG_LEVEL, falling back to LOG_LEVEL.
func getLogLevel() slog.Level {
	v := config.NewViper()
	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

func main() {
	// Logs go to stderr so stdout stays clean for commands that print data.
	logger, flush, err := logging.New(getLogLevel())
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	err = app.NewRootCmd().Execute()
	flush()
	if err != nil {
		os.Exit(1)
	}
}
