package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mrz1836/deskpilot/internal/agent"
	"github.com/mrz1836/deskpilot/internal/domain"
)

// progressWidth is the width of the step bar on the spinner line.
const progressWidth = 20

// StepFeedback is the visual surface of a running task: a spinner line with
// the step counter, a progress bar and a streamed-token count, plus one
// printed line per finished step.
type StepFeedback struct {
	ctx     context.Context //nolint:containedctx // spinner lifetime follows the command context
	w       io.Writer
	spinner *Spinner
	bar     *ProgressBar
	styles  *OutputStyles
	animate bool
	verbose bool

	mu       sync.Mutex
	step     int
	maxSteps int
	tokens   int
}

var _ agent.Feedback = (*StepFeedback)(nil)

// FeedbackOption configures a StepFeedback.
type FeedbackOption func(*StepFeedback)

// WithAnimation enables the spinner line. Disable it when w is not a terminal.
func WithAnimation(enabled bool) FeedbackOption {
	return func(f *StepFeedback) { f.animate = enabled }
}

// WithReasoning prints the model's reasoning under each finished step.
func WithReasoning(enabled bool) FeedbackOption {
	return func(f *StepFeedback) { f.verbose = enabled }
}

// NewStepFeedback creates a feedback surface writing to w.
func NewStepFeedback(ctx context.Context, w io.Writer, opts ...FeedbackOption) *StepFeedback {
	f := &StepFeedback{
		ctx:     ctx,
		w:       w,
		spinner: NewSpinner(w),
		bar:     NewProgressBar(progressWidth),
		styles:  NewOutputStyles(),
		animate: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start prints the task header and starts the spinner.
func (f *StepFeedback) Start(task string, maxSteps int) {
	f.mu.Lock()
	f.step, f.maxSteps, f.tokens = 0, maxSteps, 0
	f.mu.Unlock()

	f.println(StyleBold.Render("▶ " + task))
	if f.animate {
		f.spinner.Start(f.ctx, f.line())
	}
}

// StepStarted resets the token count and advances the bar.
func (f *StepFeedback) StepStarted(step, maxSteps int) {
	f.mu.Lock()
	f.step, f.maxSteps, f.tokens = step, maxSteps, 0
	f.mu.Unlock()
	f.refresh()
}

// Token counts one streamed token.
func (f *StepFeedback) Token(string) {
	f.mu.Lock()
	f.tokens++
	f.mu.Unlock()
	f.refresh()
}

// StepFinished prints the step's log entry.
func (f *StepFeedback) StepFinished(e domain.ExecutionLogEntry) {
	f.println(FormatEntry(e, f.styles))
	if f.verbose && e.Reasoning != "" {
		f.println(f.styles.Dim.Render("    " + e.Reasoning))
	}
}

// Stop clears the spinner line.
func (f *StepFeedback) Stop() {
	f.spinner.Stop()
}

func (f *StepFeedback) refresh() {
	if f.animate {
		f.spinner.Update(f.line())
	}
}

func (f *StepFeedback) println(s string) {
	if f.animate && f.spinner.Running() {
		f.spinner.Println(s)
		return
	}
	_, _ = fmt.Fprintln(f.spinner.Writer(), s)
}

// line renders "Step 3/15 <bar> thinking (42 tokens)".
func (f *StepFeedback) line() string {
	f.mu.Lock()
	step, maxSteps, tokens := f.step, f.maxSteps, f.tokens
	f.mu.Unlock()

	if step == 0 {
		return "starting"
	}
	percent := 0.0
	if maxSteps > 0 {
		percent = float64(step-1) / float64(maxSteps)
	}
	status := "capturing screen"
	if tokens > 0 {
		status = fmt.Sprintf("thinking (%d tokens)", tokens)
	}
	return fmt.Sprintf("%s %s %s", FormatStepCounter(step, maxSteps), f.bar.Render(percent), status)
}

// FormatEntry renders one execution log entry as "✓ [2] mouse_click: Clicked at (1, 2)".
func FormatEntry(e domain.ExecutionLogEntry, styles *OutputStyles) string {
	icon, style := "✓", styles.Success
	if !e.Success {
		icon, style = "✗", styles.Error
	}
	if e.Action == "cancel" {
		icon, style = "■", styles.Warning
	}
	return fmt.Sprintf("%s [%d] %s: %s", style.Render(icon), e.Step, StyleBold.Render(e.Action), e.Outcome)
}
