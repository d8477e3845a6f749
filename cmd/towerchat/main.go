// Package main provides the towerchat CLI.
//
// towerchat is a multi-tenant real-time chat server for operations teams:
// clients hold one WebSocket connection, authenticate with a bearer token,
// and receive message, typing, and presence events for the channels their
// account belongs to.
//
// Start the server:
//
//	towerchat serve --config towerchat.yaml
//
// Apply the database schema:
//
//	towerchat migrate --config towerchat.yaml
//
// Mint a development token:
//
//	towerchat token --secret dev-secret --account <account-id>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "towerchat",
		Short:         "Real-time team chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd(), buildMigrateCmd(), buildTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from config values.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
