package domain

import "time"

// SessionStatus is the lifecycle state of an agent session.
type SessionStatus string

// Session states. Completed, Cancelled, Failed and StepLimitReached are terminal.
const (
	StatusIdle             SessionStatus = "idle"
	StatusRunning          SessionStatus = "running"
	StatusCompleted        SessionStatus = "completed"
	StatusCancelled        SessionStatus = "cancelled"
	StatusFailed           SessionStatus = "failed"
	StatusStepLimitReached SessionStatus = "step_limit_reached"
)

// String returns the status name.
func (s SessionStatus) String() string { return string(s) }

// Transition records one status change of a session.
type Transition struct {
	From      SessionStatus `json:"from"`
	To        SessionStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ExecutionLogEntry is one ordered, append-only record of what happened.
// The controller writes one entry per step; the executor keeps its own audit
// trail of the same shape with Step left at zero.
type ExecutionLogEntry struct {
	Step        int       `json:"step"`
	Action      string    `json:"action"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Preview     string    `json:"preview,omitempty"`
	Outcome     string    `json:"outcome"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
}

// ContextEntry is one remembered step fed back into the next prompt.
type ContextEntry struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Reasoning   string `json:"reasoning,omitempty"`
	Observation string `json:"observation,omitempty"`
	Result      string `json:"result,omitempty"`
}

// TaskResult is the terminal outcome of a task run.
//
// Example JSON representation:
//
//	{
//	    "success": true,
//	    "task": "open notepad",
//	    "status": "completed",
//	    "steps_completed": 2,
//	    "execution_log": [...],
//	    "message": "Task completed!"
//	}
type TaskResult struct {
	Success        bool                `json:"success"`
	SessionID      string              `json:"session_id,omitempty"`
	Task           string              `json:"task"`
	Status         SessionStatus       `json:"status"`
	StepsCompleted int                 `json:"steps_completed"`
	StepsTaken     int                 `json:"steps_taken"`
	ExecutionLog   []ExecutionLogEntry `json:"execution_log"`
	Message        string              `json:"message"`
	Error          string              `json:"error,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// CancelResult is returned by an emergency stop.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionStatusInfo is a point-in-time view of a controller for status reporting.
type SessionStatusInfo struct {
	Model        string              `json:"model"`
	Provider     string              `json:"provider"`
	Status       SessionStatus       `json:"status"`
	Running      bool                `json:"running"`
	Step         int                 `json:"step"`
	MaxSteps     int                 `json:"max_steps"`
	Permissions  map[Capability]bool `json:"permissions"`
	HistoryTurns int                 `json:"history_turns"`
}
