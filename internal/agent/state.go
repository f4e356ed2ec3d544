// Package agent runs the capture, infer, parse and act loop that drives the
// desktop for one task at a time.
//
// This file implements the session state machine, which enforces valid state
// transitions and keeps an audit trail of every status change.
//
// Import rules:
//   - CAN import: internal/ai, internal/capture, internal/executor, internal/loopguard,
//     internal/parser, internal/prompts, internal/vision, internal/config, internal/domain,
//     internal/errors, internal/metrics, internal/clock, std lib
//   - MUST NOT import: internal/cli, internal/tui, internal/history
package agent

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the session lifecycle.
//
//	Idle → Running
//	Running → Completed, Cancelled, Failed, StepLimitReached
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.StatusIdle: {domain.StatusRunning},
	domain.StatusRunning: {
		domain.StatusCompleted,
		domain.StatusCancelled,
		domain.StatusFailed,
		domain.StatusStepLimitReached,
	},
}

// terminalStatuses are the states with no outgoing transitions.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[domain.SessionStatus]bool{
	domain.StatusCompleted:        true,
	domain.StatusCancelled:        true,
	domain.StatusFailed:           true,
	domain.StatusStepLimitReached: true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidTransition(from, to domain.SessionStatus) bool {
	if from == to {
		return false
	}
	return slices.Contains(ValidTransitions[from], to)
}

// IsTerminalStatus returns true for states where no further transitions are allowed.
func IsTerminalStatus(status domain.SessionStatus) bool {
	return terminalStatuses[status]
}

// Session is the mutable state of one task run. It is owned by the
// controller goroutine; readers go through Controller.Status.
type Session struct {
	ID             string
	Task           string
	Model          string
	Status         domain.SessionStatus
	Step           int
	StepsCompleted int
	Context        *TaskContext
	Log            []domain.ExecutionLogEntry
	Transitions    []domain.Transition
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewSession creates an idle session with a fresh ID.
func NewSession(task, model string, window int, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Task:      task,
		Model:     model,
		Status:    domain.StatusIdle,
		Context:   NewTaskContext(window),
		StartedAt: now,
	}
}

// Transition validates and applies a state transition to the session.
// It records the transition and stamps FinishedAt on terminal states.
func Transition(s *Session, to domain.SessionStatus, reason string, now time.Time) error {
	if s == nil {
		return fmt.Errorf("%w: session is nil", dperrors.ErrInvalidTransition)
	}
	from := s.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", dperrors.ErrInvalidTransition, from, to)
	}
	s.Transitions = append(s.Transitions, domain.Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: now,
	})
	s.Status = to
	if IsTerminalStatus(to) {
		s.FinishedAt = now
	}
	return nil
}

// Append adds an entry to the execution log.
func (s *Session) Append(entry domain.ExecutionLogEntry) {
	s.Log = append(s.Log, entry)
}

// Result builds the terminal result for the session.
func (s *Session) Result(success bool, message string, err error) *domain.TaskResult {
	r := &domain.TaskResult{
		Success:        success,
		SessionID:      s.ID,
		Task:           s.Task,
		Status:         s.Status,
		StepsCompleted: s.StepsCompleted,
		StepsTaken:     s.Step,
		ExecutionLog:   append([]domain.ExecutionLogEntry{}, s.Log...),
		Message:        message,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
