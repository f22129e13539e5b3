// Package cli implements the wscheck command-line interface.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/getmockd/wscheck/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "wscheck",
	Short: "WebSocket conformance check harness",
	Long: `wscheck stands up a minimal WebSocket echo server and drives
request/response conversations against it (or against an external
endpoint) to verify frame-level correctness: ping delivery, byte-exact
echo across frame-length boundary sizes, and orderly close.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	logLevelFlag  string
	logFormatFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
}

// newLogger builds the logger from the persistent flags.
func newLogger() *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(logLevelFlag),
		Format: logging.ParseFormat(logFormatFlag),
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
