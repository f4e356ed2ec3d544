package agent

import "github.com/mrz1836/deskpilot/internal/domain"

// Feedback is the visual surface that shows a running task to the user.
// Calls arrive from the controller goroutine in order.
type Feedback interface {
	// Start is called once when a task begins.
	Start(task string, maxSteps int)
	// StepStarted is called before the screen is captured for step.
	StepStarted(step, maxSteps int)
	// Token receives each streamed model token of the current step.
	Token(tok string)
	// StepFinished is called with the log entry of every finished step.
	StepFinished(entry domain.ExecutionLogEntry)
	// Stop is called once during terminal cleanup.
	Stop()
}

// NoopFeedback discards everything.
type NoopFeedback struct{}

var _ Feedback = NoopFeedback{}

// Start implements Feedback.
func (NoopFeedback) Start(string, int) {}

// StepStarted implements Feedback.
func (NoopFeedback) StepStarted(int, int) {}

// Token implements Feedback.
func (NoopFeedback) Token(string) {}

// StepFinished implements Feedback.
func (NoopFeedback) StepFinished(domain.ExecutionLogEntry) {}

// Stop implements Feedback.
func (NoopFeedback) Stop() {}
