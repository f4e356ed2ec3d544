package prompts

import "github.com/mrz1836/deskpilot/internal/domain"

// PromptID identifies a specific prompt template.
type PromptID string

// Prompt identifiers.
const (
	// AgentStep asks the model for the next action of a running task.
	AgentStep PromptID = "agent/step"

	// AnalyzeScreen is the one-shot screen question.
	AnalyzeScreen PromptID = "agent/analyze"

	// ChatSystem is the system message that opens a chat conversation.
	ChatSystem PromptID = "agent/chat_system"
)

// DefaultAnalyzeQuestion is asked when AnalyzeScreen gets no question.
const DefaultAnalyzeQuestion = "Describe what you see on the screen."

// StepData contains input data for the agent step prompt.
type StepData struct {
	// Task is the user's task text.
	Task string
	// Step is the 1-based index of this step and MaxSteps the limit.
	Step     int
	MaxSteps int
	// Width and Height are the screen dimensions in pixels.
	Width  int
	Height int
	// Context is the bounded window of recent steps, oldest first.
	Context []domain.ContextEntry
	// LoopWarning is set when the previous steps repeated the same action.
	LoopWarning string
	// Elements names the glyphs detect_ui_element can locate.
	Elements []string
}

// AnalyzeData contains input data for the screen analysis prompt.
type AnalyzeData struct {
	Question string
	Width    int
	Height   int
}

// ChatSystemData contains input data for the chat system message.
type ChatSystemData struct {
	Width  int
	Height int
}
