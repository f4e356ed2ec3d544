// Package tui provides the terminal surfaces of deskpilot: styled output,
// the per-step spinner and progress line, permission menus and markdown
// rendering of model replies.
//
// # Semantic Colors
//
// Five semantic colors are exported for use across components:
//   - ColorPrimary (Blue): active states and step progress
//   - ColorSuccess (Green): completed steps and tasks
//   - ColorWarning (Yellow): loop warnings and step limits
//   - ColorError (Red): failed steps, cancellations
//   - ColorMuted (Gray): reasoning and secondary text
//
// # NO_COLOR Support
//
// Call CheckNoColor() at the start of commands to respect the NO_COLOR
// environment variable. Colors are also disabled when TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/deskpilot/internal/domain"
)

//nolint:gochecknoglobals // Intentional package-level constants for TUI styling API
var (
	// ColorPrimary is blue, used for active states and progress.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for completed steps and tasks.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for warnings.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failures.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies faint formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// OutputStyles holds common output styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
	Header  lipgloss.Style
}

// NewOutputStyles creates common output styles using AdaptiveColor for light/dark terminal support.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
		Header: lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
	}
}

// CheckNoColor switches lipgloss to plain ASCII when colors are unsupported.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (any value, including
// empty) or TERM=dumb. See https://no-color.org/.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// StatusIcon returns the icon for a session status. Every status is shown
// as icon + color + text.
func StatusIcon(status domain.SessionStatus) string {
	switch status {
	case domain.StatusIdle:
		return "○"
	case domain.StatusRunning:
		return "●"
	case domain.StatusCompleted:
		return "✓"
	case domain.StatusCancelled, domain.StatusFailed:
		return "✗"
	case domain.StatusStepLimitReached:
		return "⚠"
	default:
		return "?"
	}
}

// StatusColor returns the semantic color for a session status.
func StatusColor(status domain.SessionStatus) lipgloss.AdaptiveColor {
	switch status {
	case domain.StatusRunning:
		return ColorPrimary
	case domain.StatusCompleted:
		return ColorSuccess
	case domain.StatusStepLimitReached:
		return ColorWarning
	case domain.StatusCancelled, domain.StatusFailed:
		return ColorError
	default:
		return ColorMuted
	}
}

// FormatStatus renders a status as colored "icon text".
func FormatStatus(status domain.SessionStatus) string {
	return lipgloss.NewStyle().Foreground(StatusColor(status)).Render(StatusIcon(status) + " " + status.String())
}
