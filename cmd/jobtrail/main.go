package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "jobtrail",
	Short: "Track job applications and your career profile",
	Long: `jobtrail keeps a local, optimistic view of your job applications and
career profile, synced with the jobtrail backend.

Sign in once with "jobtrail login"; the dashboard server, the CLI and the
assistant tools share the stored session.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(jobsCmd, profileCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Failures already shown as notifications are not repeated.
		if !errors.Is(err, errReported) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

// setupLogging installs the default logger. The CLI logs at warn unless
// debug is configured so that log lines do not drown command output.
func setupLogging(level string, server bool) *slog.Logger {
	lvl := slog.LevelWarn
	switch {
	case strings.EqualFold(level, "debug"):
		lvl = slog.LevelDebug
	case server:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
