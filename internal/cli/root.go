// Package cli provides the command-line interface for deskpilot.
package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// It is set during PersistentPreRunE and read through GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// IMPORTANT: This function MUST only be called after the root command's
// PersistentPreRunE has executed. Before that it returns a zero-value logger
// that discards all output.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates the root command with the production dependencies.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	return newRootCmdWithDeps(flags, info, DefaultDeps())
}

// newRootCmdWithDeps creates the root command. Every subcommand builds its
// components from deps, so tests can swap the screen, input and model backends.
func newRootCmdWithDeps(flags *GlobalFlags, info BuildInfo, deps *Deps) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "deskpilot",
		Short: "deskpilot - vision-model desktop automation agent",
		Long: `deskpilot drives the desktop with a local vision model.

Each step captures the screen, asks the model for exactly one action,
runs it through a permission gate and feeds the outcome back into the
next prompt until the task completes or the step limit is reached.

Features:
  • Permission-gated mouse, keyboard and process actions
  • Template-matching detection of taskbar glyphs
  • Chat and one-shot screen analysis
  • Emergency stop on Ctrl+C that also unloads the model
  • Session history under ~/.deskpilot/history`,
		Version: formatVersion(info),
		// Run displays help so PersistentPreRunE still validates flags.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", dperrors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			logger := deps.NewLogger(flags.Verbose, flags.Quiet)
			globalLoggerMu.Lock()
			globalLogger = logger
			globalLoggerMu.Unlock()

			return nil
		},
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddRunCommand(cmd, flags, deps)
	AddChatCommand(cmd, flags, deps)
	AddAnalyzeCommand(cmd, flags, deps)
	AddDetectCommand(cmd, flags, deps)
	AddModelsCommand(cmd, flags, deps)
	AddUnloadCommand(cmd, flags, deps)
	AddStatusCommand(cmd, flags, deps)
	AddConfigCommand(cmd, deps)
	AddHistoryCommand(cmd, flags, deps)
	AddCompletionCommand(cmd)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	return cmd.ExecuteContext(ctx)
}
