package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/deadlinks/internal/log"
)

// NewRootCmd creates the root command for deadlinks.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadlinks",
		Short: "Find and mark dead external links in site content",
		Long: `deadlinks checks every external link of rendered site content with an
HTTP request. Links that answer with a client error, or that cannot be
reached when timeouts count as errors, are marked with CSS classes and an
optional label, and their target is rewritten to the web archive.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (every checked link)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only log warnings and errors")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getLogOptions reads the global logging flags. Missing flags read as false.
func getLogOptions(cmd *cobra.Command) log.Options {
	return log.Options{
		Verbose: getBoolFlag(cmd, "verbose"),
		Quiet:   getBoolFlag(cmd, "quiet"),
		JSON:    getBoolFlag(cmd, "log-json"),
	}
}

// getBoolFlag retrieves a flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the logger for a command and makes it the default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := log.New(cmd.ErrOrStderr(), getLogOptions(cmd))
	slog.SetDefault(logger)
	return logger
}
