package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressBar renders a static step progress bar.
type ProgressBar struct {
	bar   progress.Model
	width int
}

// NewProgressBar creates a progress bar. NO_COLOR uses a solid gray fill.
func NewProgressBar(width int) *ProgressBar {
	var bar progress.Model
	if HasColorSupport() {
		bar = progress.New(
			progress.WithWidth(width),
			progress.WithScaledGradient("#0087AF", "#00D7FF"),
			progress.WithoutPercentage(),
		)
	} else {
		bar = progress.New(
			progress.WithWidth(width),
			progress.WithSolidFill("#808080"),
			progress.WithoutPercentage(),
		)
	}
	return &ProgressBar{bar: bar, width: width}
}

// Render returns the bar at percent, clamped to [0, 1].
func (pb *ProgressBar) Render(percent float64) string {
	return pb.bar.ViewAs(min(max(percent, 0), 1))
}

// Width returns the bar width.
func (pb *ProgressBar) Width() int { return pb.width }

// FormatStepCounter formats step progress as "Step current/total".
func FormatStepCounter(current, total int) string {
	return fmt.Sprintf("Step %d/%d", current, total)
}
