package cli

import (
	stderrors "errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/deskpilot/internal/config"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Exit codes for the CLI.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitError indicates a general error.
	ExitError = 1
	// ExitInvalidInput indicates invalid user input.
	ExitInvalidInput = 2
)

// Output format constants.
const (
	// OutputText is the default human-readable output format.
	OutputText = "text"
	// OutputJSON is the machine-readable JSON output format.
	OutputJSON = "json"
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	// Output specifies the output format (text or json).
	Output string
	// Verbose enables debug-level logging.
	Verbose bool
	// Quiet suppresses non-essential output (warn level only).
	Quiet bool
}

// AddGlobalFlags adds global flags to a command.
// These flags are available to all subcommands via PersistentFlags.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// BindGlobalFlags binds global flags to Viper so DESKPILOT_OUTPUT,
// DESKPILOT_VERBOSE and DESKPILOT_QUIET are honored.
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	// Root().PersistentFlags() finds the flags even from a subcommand.
	rootFlags := cmd.Root().PersistentFlags()

	for _, name := range []string{"output", "verbose", "quiet"} {
		if err := v.BindPFlag(name, rootFlags.Lookup(name)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	return nil
}

// ValidOutputFormats returns the list of valid output format values.
func ValidOutputFormats() []string {
	return []string{OutputText, OutputJSON}
}

// IsValidOutputFormat checks if the given format is a valid output format.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(ValidOutputFormats(), format)
}

// invalidInputErrors are sentinels that mean the user asked for something malformed.
//
//nolint:gochecknoglobals // Static lookup table
var invalidInputErrors = []error{
	dperrors.ErrInvalidOutputFormat,
	dperrors.ErrInvalidPermission,
	dperrors.ErrEmptyTask,
	dperrors.ErrUnknownElement,
}

// cobraUsageMessages are substrings of cobra and pflag usage errors, which
// carry no sentinel.
//
//nolint:gochecknoglobals // Static lookup table
var cobraUsageMessages = []string{
	"unknown flag",
	"unknown shorthand flag",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"required flag",
	"unknown command",
	"accepts ",
	"requires at least",
}

// ExitCodeForError maps err to the process exit code: 0 for nil, 2 for
// malformed input, 1 for everything else including unsuccessful tasks.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case isInvalidInput(err):
		return ExitInvalidInput
	default:
		return ExitError
	}
}

func isInvalidInput(err error) bool {
	if dperrors.IsExitCode2Error(err) {
		return true
	}
	for _, target := range invalidInputErrors {
		if stderrors.Is(err, target) {
			return true
		}
	}
	msg := err.Error()
	return slices.ContainsFunc(cobraUsageMessages, func(m string) bool {
		return strings.Contains(msg, m)
	})
}
