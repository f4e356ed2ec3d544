// Package metrics collects counters and latencies for agent sessions.
// Components depend on the Metrics interface; the CLI wires either
// NoopMetrics or a Prometheus-backed implementation.
package metrics

import "time"

// Metrics collects metrics about sessions, steps, inference calls and detections.
type Metrics interface {
	// TaskStarted is called when a task session begins.
	TaskStarted(sessionID, model string)

	// TaskFinished is called once per session with its terminal status.
	TaskFinished(sessionID, status string, stepsCompleted int, duration time.Duration)

	// ActionExecuted is called after every dispatched action.
	ActionExecuted(action string, success bool)

	// PermissionDenied is called when the permission gate refuses an action.
	PermissionDenied(capability string)

	// InferenceCompleted is called after every generate or chat call.
	InferenceCompleted(model string, streamed bool, duration time.Duration, err error)

	// DetectionCompleted is called after every UI element detection.
	DetectionCompleted(element string, found bool, duration time.Duration)
}

// NoopMetrics is a no-op implementation of Metrics for default behavior.
type NoopMetrics struct{}

var _ Metrics = (*NoopMetrics)(nil)

// TaskStarted implements Metrics.
func (NoopMetrics) TaskStarted(string, string) {}

// TaskFinished implements Metrics.
func (NoopMetrics) TaskFinished(string, string, int, time.Duration) {}

// ActionExecuted implements Metrics.
func (NoopMetrics) ActionExecuted(string, bool) {}

// PermissionDenied implements Metrics.
func (NoopMetrics) PermissionDenied(string) {}

// InferenceCompleted implements Metrics.
func (NoopMetrics) InferenceCompleted(string, bool, time.Duration, error) {}

// DetectionCompleted implements Metrics.
func (NoopMetrics) DetectionCompleted(string, bool, time.Duration) {}

// OrNoop returns m, or NoopMetrics when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}
