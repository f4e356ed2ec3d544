package tui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Menu layout.
const (
	// TerminalEdgeMargin is kept between menu content and the terminal edge.
	TerminalEdgeMargin = 4

	// MinMenuWidth is the narrowest usable menu.
	MinMenuWidth = 40

	// DefaultMenuWidth caps menus on wide terminals.
	DefaultMenuWidth = 80
)

// capabilityDescriptions explains each capability in the permission menu.
//
//nolint:gochecknoglobals // Static lookup table
var capabilityDescriptions = map[domain.Capability]string{
	domain.CapabilityMouse:    "move the cursor, click and scroll",
	domain.CapabilityKeyboard: "type text and press keys or shortcuts",
	domain.CapabilityFile:     "save files (Ctrl+S)",
	domain.CapabilityProcess:  "open applications and windows",
}

// adaptWidth fits maxWidth to the terminal, keeping a margin.
func adaptWidth(maxWidth int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd())) //nolint:gosec // G115: fd fits in int on supported platforms
	if err != nil || width <= 0 {
		return maxWidth
	}
	available := width - TerminalEdgeMargin
	if maxWidth > 0 && maxWidth < available {
		return maxWidth
	}
	return max(available, MinMenuWidth)
}

// Theme returns the huh theme mapped onto the semantic colors.
func Theme() *huh.Theme {
	CheckNoColor()
	t := huh.ThemeBase()
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorPrimary)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorPrimary)
	t.Focused.SelectedPrefix = t.Focused.SelectedPrefix.Foreground(ColorSuccess)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Blurred.Base = t.Blurred.Base.BorderForeground(ColorMuted)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorMuted)
	return t
}

// runForm runs a single-field form. It refuses to start without a terminal
// so that tests and pipes never block.
func runForm(field huh.Field, errorContext string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // G115: fd fits in int on supported platforms
		return dperrors.ErrNotInteractive
	}
	_, accessible := os.LookupEnv("ACCESSIBLE")

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(Theme()).
		WithWidth(adaptWidth(DefaultMenuWidth)).
		WithAccessible(accessible)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return dperrors.ErrMenuCanceled
		}
		return fmt.Errorf("%s: %w", errorContext, err)
	}
	return nil
}

// Confirm asks a yes/no question.
func Confirm(message string, defaultYes bool) (bool, error) {
	confirmed := defaultYes
	field := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)
	if err := runForm(field, "confirm prompt failed"); err != nil {
		return false, err
	}
	return confirmed, nil
}

// PermissionOptions builds the menu options, preselecting the capabilities in preset.
func PermissionOptions(preset []domain.Capability) []huh.Option[domain.Capability] {
	selected := make(map[domain.Capability]bool, len(preset))
	for _, c := range preset {
		selected[c] = true
	}
	caps := domain.AllCapabilities()
	opts := make([]huh.Option[domain.Capability], len(caps))
	for i, c := range caps {
		opts[i] = huh.NewOption(fmt.Sprintf("%s - %s", c, capabilityDescriptions[c]), c).Selected(selected[c])
	}
	return opts
}

// SelectPermissions asks which capabilities the task may use.
func SelectPermissions(preset []domain.Capability) ([]domain.Capability, error) {
	var granted []domain.Capability
	field := huh.NewMultiSelect[domain.Capability]().
		Title("Allow deskpilot to control").
		Description("Denied actions are skipped and reported back to the model.").
		Options(PermissionOptions(preset)...).
		Value(&granted)
	if err := runForm(field, "permission menu failed"); err != nil {
		return nil, err
	}
	return granted, nil
}
